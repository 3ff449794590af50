package perception

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedCall records one StructuredComplete invocation on a ScriptedClient.
type ScriptedCall struct {
	SystemPrompt string
	UserPrompt   string
}

// ScriptedClient is a Client for tests. It returns canned JSON payloads in
// order and records every call it receives.
type ScriptedClient struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   []ScriptedCall
}

// NewScriptedClient queues the given JSON replies. A nil entry in errs (or a
// short errs slice) means the matching reply succeeds.
func NewScriptedClient(replies ...string) *ScriptedClient {
	return &ScriptedClient{replies: replies}
}

// FailWith appends an error reply to the script, after any replies already
// queued.
func (s *ScriptedClient) FailWith(err error) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, "")
	for len(s.errs) < len(s.replies)-1 {
		s.errs = append(s.errs, nil)
	}
	s.errs = append(s.errs, err)
	return s
}

// Calls returns a copy of the recorded invocations.
func (s *ScriptedClient) Calls() []ScriptedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScriptedCall, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *ScriptedClient) StructuredComplete(_ context.Context, systemPrompt, userPrompt string, out any) (*Trace, error) {
	s.mu.Lock()
	idx := len(s.calls)
	s.calls = append(s.calls, ScriptedCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
	if idx >= len(s.replies) {
		s.mu.Unlock()
		return nil, fmt.Errorf("scripted client exhausted after %d calls", idx)
	}
	reply := s.replies[idx]
	var scriptedErr error
	if idx < len(s.errs) {
		scriptedErr = s.errs[idx]
	}
	s.mu.Unlock()

	if scriptedErr != nil {
		return nil, scriptedErr
	}
	if err := decodeStrict(extractJSON(reply), out); err != nil {
		return nil, fmt.Errorf("completion did not match expected shape: %w", err)
	}
	if v, ok := out.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("completion failed contract validation: %w", err)
		}
	}
	return &Trace{Model: "scripted"}, nil
}
