package tools

import (
	"context"
	"fmt"

	"crosstab/internal/contracts"
	"crosstab/internal/perception"
)

// SegmentBuilder translates a segment description into a SegmentSpec via
// the planning collaborator.
type SegmentBuilder struct {
	client perception.Client
}

func NewSegmentBuilder(client perception.Client) *SegmentBuilder {
	return &SegmentBuilder{client: client}
}

func (*SegmentBuilder) Name() string        { return "segment_builder" }
func (*SegmentBuilder) Description() string { return "Builds a segment definition" }

// Run makes one completion call and returns the structured segment.
func (t *SegmentBuilder) Run(ctx context.Context, tc ToolContext) contracts.ToolOutput[contracts.SegmentSpec] {
	if tc.Prompt == "" {
		return contracts.Failure[contracts.SegmentSpec](contracts.Err(contracts.CodeMissingInput, "no segment description provided"))
	}
	userContent := fmt.Sprintf("Segment request:\n%s\n\nQuestions:\n%s\n", tc.Prompt, tc.QuestionsSummary())

	var seg contracts.SegmentSpec
	trace, err := t.client.StructuredComplete(ctx, loadPrompt("segment_plan.md"), userContent, &seg)
	if err != nil {
		return contracts.Failure[contracts.SegmentSpec](completionError("segment building", err))
	}
	return contracts.Success(seg, traceMap(trace))
}
