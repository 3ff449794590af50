package contracts

import "fmt"

// MetricType is the closed set of supported cut metrics. Anything else is
// rejected at the schema boundary and never reaches the executor.
type MetricType string

const (
	MetricFrequency MetricType = "frequency"
	MetricMean      MetricType = "mean"
	MetricTop2Box   MetricType = "top2box"
	MetricBottom2   MetricType = "bottom2box"
	MetricNPS       MetricType = "nps"
)

// Valid reports whether t is in the closed metric set.
func (t MetricType) Valid() bool {
	switch t {
	case MetricFrequency, MetricMean, MetricTop2Box, MetricBottom2, MetricNPS:
		return true
	}
	return false
}

// MetricSpec selects a metric over one question.
type MetricSpec struct {
	Type       MetricType     `json:"type"`
	QuestionID string         `json:"question_id"`
	Params     map[string]any `json:"params,omitempty"`
}

// Validate enforces the closed metric enum.
func (m MetricSpec) Validate() error {
	if !m.Type.Valid() {
		return &SchemaError{Field: "metric.type", Detail: fmt.Sprintf("unsupported metric type %q", m.Type)}
	}
	if m.QuestionID == "" {
		return &SchemaError{Field: "metric.question_id", Detail: "metric requires a question_id"}
	}
	return nil
}

// DimensionKind discriminates grouping axes.
type DimensionKind string

const (
	DimensionQuestion DimensionKind = "question"
	DimensionSegment  DimensionKind = "segment"
)

// DimensionSpec is one grouping axis of a cut: either a question's
// categories or membership in a previously defined segment.
type DimensionSpec struct {
	Kind DimensionKind `json:"kind"`
	ID   string        `json:"id"`
}

// Validate enforces the closed dimension kinds.
func (d DimensionSpec) Validate() error {
	if d.Kind != DimensionQuestion && d.Kind != DimensionSegment {
		return &SchemaError{Field: "dimension.kind", Detail: fmt.Sprintf("unsupported dimension kind %q", d.Kind)}
	}
	if d.ID == "" {
		return &SchemaError{Field: "dimension.id", Detail: "dimension requires an id"}
	}
	return nil
}

// CutSpec is a single tabulation request and the unit of execution.
type CutSpec struct {
	CutID      string          `json:"cut_id"`
	Metric     MetricSpec      `json:"metric"`
	Dimensions []DimensionSpec `json:"dimensions,omitempty"`
	Filter     *FilterExpr     `json:"filter,omitempty"`
}

// Validate checks the spec's schema shape: closed enums and structural
// completeness. Catalog-dependent checks live in the engine validators.
func (c CutSpec) Validate() error {
	if err := c.Metric.Validate(); err != nil {
		return err
	}
	for _, d := range c.Dimensions {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	if c.Filter != nil {
		return c.Filter.Validate()
	}
	return nil
}

// SegmentSpec names a reusable respondent subset defined by a filter
// expression. Session-scoped; re-defining a segment id replaces it.
type SegmentSpec struct {
	SegmentID         string      `json:"segment_id"`
	Name              string      `json:"name"`
	Definition        *FilterExpr `json:"definition"`
	IntendedPartition bool        `json:"intended_partition,omitempty"`
	Notes             string      `json:"notes,omitempty"`
}

// Validate checks schema shape.
func (s SegmentSpec) Validate() error {
	if s.SegmentID == "" {
		return &SchemaError{Field: "segment_id", Detail: "segment requires a segment_id"}
	}
	if s.Definition == nil {
		return &SchemaError{Field: "definition", Detail: "segment requires a filter definition"}
	}
	return s.Definition.Validate()
}

// AnalysisIntent is one planned line of analysis inside a high-level plan.
type AnalysisIntent struct {
	IntentID       string   `json:"intent_id"`
	Description    string   `json:"description"`
	SegmentsNeeded []string `json:"segments_needed,omitempty"`
	Priority       int      `json:"priority"`
}

// HighLevelPlan is the planning collaborator's answer to "what should we
// analyze" requests.
type HighLevelPlan struct {
	Intents           []AnalysisIntent `json:"intents"`
	Rationale         string           `json:"rationale"`
	SuggestedSegments []SegmentSpec    `json:"suggested_segments,omitempty"`
}

// Validate checks the plan is non-empty and its parts are well formed.
func (p HighLevelPlan) Validate() error {
	if len(p.Intents) == 0 {
		return &SchemaError{Field: "intents", Detail: "plan requires at least one intent"}
	}
	for _, s := range p.SuggestedSegments {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IntentType is the closed routing intent set.
type IntentType string

const (
	IntentChat    IntentType = "chat"
	IntentPlan    IntentType = "high_level_plan"
	IntentCut     IntentType = "cut_analysis"
	IntentSegment IntentType = "segment_definition"
	IntentClarify IntentType = "clarify"
)

// Valid reports whether t is a member of the closed intent set.
func (t IntentType) Valid() bool {
	switch t {
	case IntentChat, IntentPlan, IntentCut, IntentSegment, IntentClarify:
		return true
	}
	return false
}

// UserIntent is the classifier's verdict for one message. Reasoning is
// diagnostic only and never shown to end users.
type UserIntent struct {
	IntentType IntentType `json:"intent_type"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning,omitempty"`
}

// Validate rejects intents outside the closed set or with a confidence
// outside [0, 1].
func (u UserIntent) Validate() error {
	if !u.IntentType.Valid() {
		return &SchemaError{Field: "intent_type", Detail: fmt.Sprintf("unknown intent type %q", u.IntentType)}
	}
	if u.Confidence < 0 || u.Confidence > 1 {
		return &SchemaError{Field: "confidence", Detail: fmt.Sprintf("confidence %v outside [0, 1]", u.Confidence)}
	}
	return nil
}

// ActionType is the subset of intents a disambiguation option may dispatch.
type ActionType string

const (
	ActionCut     ActionType = "cut_analysis"
	ActionPlan    ActionType = "high_level_plan"
	ActionSegment ActionType = "segment_definition"
	ActionChat    ActionType = "chat"
)

// Action is one suggested follow-up carried by a chat response.
type Action struct {
	Label      string            `json:"label"`
	ActionType ActionType        `json:"action_type"`
	Params     map[string]string `json:"params,omitempty"`
}

// DisambiguationOption is one candidate interpretation of an ambiguous
// message, offered as a numbered choice.
type DisambiguationOption struct {
	OptionID     string            `json:"option_id"`
	Label        string            `json:"label"`
	ActionType   ActionType        `json:"action_type"`
	ActionParams map[string]string `json:"action_params,omitempty"`
}

// ClarifyRequest holds a clarification question and its numbered options.
// Ephemeral: exactly one pending set exists at a time between two turns.
type ClarifyRequest struct {
	Question string                 `json:"question"`
	Options  []DisambiguationOption `json:"options"`
}

// ChatResponse is the conversational collaborator's output.
type ChatResponse struct {
	Message          string   `json:"message"`
	SuggestedActions []Action `json:"suggested_actions,omitempty"`
}

// Validate requires a displayable message.
func (c ChatResponse) Validate() error {
	if c.Message == "" {
		return &SchemaError{Field: "message", Detail: "chat response requires a message"}
	}
	return nil
}

// AgentResponse is the per-turn envelope returned to the caller. Message is
// always populated on success paths meant for display; Errors carry
// sanitized, user-safe strings only.
type AgentResponse struct {
	Intent  UserIntent      `json:"intent"`
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Errors  []string        `json:"errors,omitempty"`
	Data    any             `json:"data,omitempty"`
	Clarify *ClarifyRequest `json:"clarify,omitempty"`
}
