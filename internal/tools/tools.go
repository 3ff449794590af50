// Package tools hosts the agent's collaborator tools: intent classification,
// chat response, high-level planning, cut planning, and segment building.
// Each tool takes a ToolContext snapshot of the session and returns a typed
// ToolOutput envelope; LLM-backed tools make at most one completion call.
package tools

import (
	"errors"
	"fmt"
	"strings"

	"crosstab/internal/contracts"
	"crosstab/internal/dataset"
	"crosstab/internal/perception"
)

// Tool is the common identity surface of every collaborator tool. Run
// signatures stay on the concrete types because outputs are typed.
type Tool interface {
	Name() string
	Description() string
}

// ToolContext is the per-turn snapshot handed to a tool: the question
// catalog, session segments, optional scope notes, the user's prompt, and
// the loaded response table.
type ToolContext struct {
	Questions     []contracts.Question
	QuestionsByID map[string]contracts.Question
	Segments      []contracts.SegmentSpec
	SegmentsByID  map[string]contracts.SegmentSpec
	Scope         string
	Prompt        string
	Table         *dataset.Table
}

// QuestionsSummary renders the catalog as prompt-ready lines, one question
// per line with its type and any enumerated option codes.
func (c ToolContext) QuestionsSummary() string {
	if len(c.Questions) == 0 {
		return "(no questions)"
	}
	var b strings.Builder
	for _, q := range c.Questions {
		fmt.Fprintf(&b, "- %s (%s): %s", q.QuestionID, q.Type, q.Label)
		if len(q.Options) > 0 {
			codes := make([]string, 0, len(q.Options))
			for _, opt := range q.Options {
				codes = append(codes, opt.Code)
			}
			fmt.Fprintf(&b, " [options: %s]", strings.Join(codes, ", "))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// SegmentsSummary renders the session's segments as prompt-ready lines.
func (c ToolContext) SegmentsSummary() string {
	if len(c.Segments) == 0 {
		return "(none defined)"
	}
	var b strings.Builder
	for _, s := range c.Segments {
		fmt.Fprintf(&b, "- %s: %s\n", s.SegmentID, s.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

// traceMap flattens a completion trace into the diagnostic map carried by
// tool envelopes.
func traceMap(t *perception.Trace) map[string]any {
	if t == nil {
		return nil
	}
	return map[string]any{
		"model":             t.Model,
		"temperature":       t.Temperature,
		"latency_ms":        t.Latency.Milliseconds(),
		"prompt_tokens":     t.PromptTokens,
		"completion_tokens": t.CompletionTokens,
	}
}

// completionError maps a failed completion onto a ToolMessage: contract
// violations (values outside the closed schema sets) get their own code so
// the orchestrator can report them distinctly from transport failures.
func completionError(op string, err error) contracts.ToolMessage {
	var schemaErr *contracts.SchemaError
	if errors.As(err, &schemaErr) {
		return contracts.Err(contracts.CodeUnsupportedSchemaValue, fmt.Sprintf("%s returned an unsupported value: %v", op, schemaErr))
	}
	return contracts.Err(contracts.CodeToolError, fmt.Sprintf("%s failed: %v", op, err))
}
