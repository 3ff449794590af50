package contracts

import "time"

// TraceEvent is a single timestamped event in a turn trace, e.g.
// "intent_classified" or "ambiguity_detected".
type TraceEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// TurnTrace records everything that happened while handling one message.
// Diagnostic only; never surfaced in user-facing responses.
type TurnTrace struct {
	TurnID    string       `json:"turn_id"`
	UserInput string       `json:"user_input"`
	Events    []TraceEvent `json:"events"`
}

// AddEvent appends an event with the current timestamp.
func (t *TurnTrace) AddEvent(eventType string, data map[string]any) {
	t.Events = append(t.Events, TraceEvent{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Data:      data,
	})
}
