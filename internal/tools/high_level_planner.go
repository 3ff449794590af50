package tools

import (
	"context"
	"fmt"

	"crosstab/internal/contracts"
	"crosstab/internal/perception"
)

// HighLevelPlanner asks the planning collaborator for a prioritized list of
// analyses grounded in the loaded catalog and scope notes.
type HighLevelPlanner struct {
	client perception.Client
}

func NewHighLevelPlanner(client perception.Client) *HighLevelPlanner {
	return &HighLevelPlanner{client: client}
}

func (*HighLevelPlanner) Name() string        { return "high_level_planner" }
func (*HighLevelPlanner) Description() string { return "Creates a high-level analysis plan" }

// Run makes one completion call. An empty prompt still plans: "create a
// plan" is the default request.
func (t *HighLevelPlanner) Run(ctx context.Context, tc ToolContext) contracts.ToolOutput[contracts.HighLevelPlan] {
	prompt := tc.Prompt
	if prompt == "" {
		prompt = "Create an analysis plan."
	}
	userContent := fmt.Sprintf("User request:\n%s\n\nScope:\n%s\n\nQuestions:\n%s\n",
		prompt, tc.Scope, tc.QuestionsSummary())

	var plan contracts.HighLevelPlan
	trace, err := t.client.StructuredComplete(ctx, loadPrompt("high_level_plan.md"), userContent, &plan)
	if err != nil {
		return contracts.Failure[contracts.HighLevelPlan](completionError("planning", err))
	}
	return contracts.Success(plan, traceMap(trace))
}
