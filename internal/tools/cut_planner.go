package tools

import (
	"context"
	"fmt"

	"crosstab/internal/contracts"
	"crosstab/internal/perception"
)

// CutPlanResult is the planner's reply envelope. ok=false is the planner's
// honest refusal: the request did not map cleanly onto the catalog, and
// ambiguity_options lists the readings it considered.
type CutPlanResult struct {
	OK               bool               `json:"ok"`
	Cut              *contracts.CutSpec `json:"cut,omitempty"`
	ResolutionMap    map[string]string  `json:"resolution_map,omitempty"`
	AmbiguityOptions []string           `json:"ambiguity_options,omitempty"`
	Debug            map[string]any     `json:"debug,omitempty"`
}

// Validate checks the envelope: a confident reply must carry a well-formed
// cut; a refusal carries none.
func (r CutPlanResult) Validate() error {
	if !r.OK {
		return nil
	}
	if r.Cut == nil {
		return &contracts.SchemaError{Field: "cut", Detail: "planner replied ok without a cut"}
	}
	return r.Cut.Validate()
}

// CutPlanner translates one analysis request into a CutSpec via the
// planning collaborator.
type CutPlanner struct {
	client perception.Client
}

func NewCutPlanner(client perception.Client) *CutPlanner {
	return &CutPlanner{client: client}
}

func (*CutPlanner) Name() string        { return "cut_planner" }
func (*CutPlanner) Description() string { return "Creates a cut specification" }

// Run makes one completion call and unwraps the planner envelope.
func (t *CutPlanner) Run(ctx context.Context, tc ToolContext) contracts.ToolOutput[contracts.CutSpec] {
	if tc.Prompt == "" {
		return contracts.Failure[contracts.CutSpec](contracts.Err(contracts.CodeMissingInput, "no analysis request provided"))
	}
	userContent := fmt.Sprintf("Request:\n%s\n\nQuestions:\n%s\n\nSegments:\n%s\n",
		tc.Prompt, tc.QuestionsSummary(), tc.SegmentsSummary())

	var plan CutPlanResult
	trace, err := t.client.StructuredComplete(ctx, loadPrompt("cut_plan.md"), userContent, &plan)
	if err != nil {
		return contracts.Failure[contracts.CutSpec](completionError("cut planning", err))
	}
	if !plan.OK {
		msg := contracts.ErrCtx(contracts.CodePlanningFailed, "cut planner could not resolve the request",
			map[string]any{"ambiguity_options": plan.AmbiguityOptions, "debug": plan.Debug})
		return contracts.FailureWithTrace[contracts.CutSpec](traceMap(trace), msg)
	}

	tm := traceMap(trace)
	if len(plan.ResolutionMap) > 0 {
		if tm == nil {
			tm = make(map[string]any, 1)
		}
		tm["resolution_map"] = plan.ResolutionMap
	}
	return contracts.Success(*plan.Cut, tm)
}
