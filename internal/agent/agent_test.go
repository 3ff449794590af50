package agent

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"crosstab/internal/contracts"
	"crosstab/internal/dataset"
	"crosstab/internal/engine"
	"crosstab/internal/perception"
	"crosstab/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	questions := []contracts.Question{
		{QuestionID: "Q_NPS", Label: "Likelihood to recommend", Type: contracts.QuestionNPS010},
		{QuestionID: "Q_SAT", Label: "Overall satisfaction", Type: contracts.QuestionLikert15},
		{QuestionID: "Q_CSAT_SUPPORT", Label: "Satisfaction with support", Type: contracts.QuestionLikert15},
		{QuestionID: "Q_REGION", Label: "Region", Type: contracts.QuestionSingleChoice, Options: []contracts.Option{
			{Code: "north", Label: "North"},
			{Code: "south", Label: "South"},
		}},
		{QuestionID: "Q_PLAN", Label: "Current subscription plan", Type: contracts.QuestionSingleChoice, Options: []contracts.Option{
			{Code: "basic", Label: "Basic"},
			{Code: "pro", Label: "Pro"},
		}},
	}
	byID := make(map[string]contracts.Question, len(questions))
	for _, q := range questions {
		byID[q.QuestionID] = q
	}
	table, err := dataset.NewTable(
		[]string{"Q_NPS", "Q_SAT", "Q_CSAT_SUPPORT", "Q_REGION", "Q_PLAN"},
		[][]string{
			{"10", "5", "4", "north", "basic"},
			{"9", "4", "5", "south", "pro"},
			{"7", "3", "3", "north", "basic"},
			{"2", "1", "2", "south", "pro"},
			{"6", "4", "4", "north", "basic"},
		},
	)
	require.NoError(t, err)
	return &dataset.Dataset{
		Questions:     questions,
		QuestionsByID: byID,
		Responses:     table,
		Scope:         "Quarterly relationship study.",
	}
}

func newTestAgent(t *testing.T, client perception.Client) *Agent {
	t.Helper()
	return New(testDataset(t), client, nil)
}

// Stub tools and a counting executor for paths where scripting the
// collaborator is not enough.

type stubCutTool struct {
	out     contracts.ToolOutput[contracts.CutSpec]
	prompts []string
}

func (s *stubCutTool) Run(_ context.Context, tc tools.ToolContext) contracts.ToolOutput[contracts.CutSpec] {
	s.prompts = append(s.prompts, tc.Prompt)
	return s.out
}

type stubSegmentTool struct {
	out contracts.ToolOutput[contracts.SegmentSpec]
}

func (s *stubSegmentTool) Run(context.Context, tools.ToolContext) contracts.ToolOutput[contracts.SegmentSpec] {
	return s.out
}

type stubPlanTool struct {
	out contracts.ToolOutput[contracts.HighLevelPlan]
}

func (s *stubPlanTool) Run(context.Context, tools.ToolContext) contracts.ToolOutput[contracts.HighLevelPlan] {
	return s.out
}

type countingExecutor struct {
	inner cutExecutor
	calls int
}

func (c *countingExecutor) ExecuteCuts(cuts []contracts.CutSpec) engine.ExecutionResult {
	c.calls++
	return c.inner.ExecuteCuts(cuts)
}

func npsByRegionCut() contracts.CutSpec {
	return contracts.CutSpec{
		CutID:      "nps_by_region",
		Metric:     contracts.MetricSpec{Type: contracts.MetricNPS, QuestionID: "Q_NPS"},
		Dimensions: []contracts.DimensionSpec{{Kind: contracts.DimensionQuestion, ID: "Q_REGION"}},
	}
}

func TestChatTurn(t *testing.T) {
	client := perception.NewScriptedClient(`{"message":"Hi! Ask me about your survey data."}`)
	a := newTestAgent(t, client)

	resp := a.HandleMessage(context.Background(), "hello")
	require.True(t, resp.Success)
	assert.Equal(t, contracts.IntentChat, resp.Intent.IntentType)
	assert.Equal(t, "Hi! Ask me about your survey data.", resp.Message)
}

func TestCutTurn(t *testing.T) {
	client := perception.NewScriptedClient(`{
		"ok": true,
		"cut": {
			"cut_id": "nps_by_region",
			"metric": {"type": "nps", "question_id": "Q_NPS"},
			"dimensions": [{"kind": "question", "id": "Q_REGION"}]
		}
	}`)
	a := newTestAgent(t, client)

	resp := a.HandleMessage(context.Background(), "show nps by region")
	require.True(t, resp.Success, "errors: %v", resp.Errors)
	assert.Equal(t, contracts.IntentCut, resp.Intent.IntentType)
	assert.Contains(t, resp.Message, "CutSpec:")
	assert.Contains(t, resp.Message, "nps on Likelihood to recommend (Q_NPS)")
	assert.Contains(t, resp.Message, "Base N: 5")
	assert.Contains(t, resp.Message, "north")
	assert.Contains(t, resp.Message, "south")
}

func TestPlanTurn(t *testing.T) {
	client := perception.NewScriptedClient(`{
		"intents": [
			{"intent_id": "intent_1", "description": "NPS by region", "priority": 1},
			{"intent_id": "intent_2", "description": "Satisfaction by plan tier", "priority": 2}
		],
		"rationale": "Covers the scope."
	}`)
	a := newTestAgent(t, client)

	resp := a.HandleMessage(context.Background(), "create an analysis plan")
	require.True(t, resp.Success)
	assert.Equal(t, contracts.IntentPlan, resp.Intent.IntentType)
	assert.Contains(t, resp.Message, "Analysis plan:")
	assert.Contains(t, resp.Message, "1. NPS by region (priority 1)")
	assert.Contains(t, resp.Message, "2. Satisfaction by plan tier (priority 2)")
}

func TestPlanDisplayCapped(t *testing.T) {
	plan := contracts.HighLevelPlan{Rationale: "r"}
	for i := 0; i < 25; i++ {
		plan.Intents = append(plan.Intents, contracts.AnalysisIntent{
			IntentID: "intent", Description: "item", Priority: 1,
		})
	}
	a := newTestAgent(t, perception.NewScriptedClient())
	a.planner = &stubPlanTool{out: contracts.Success(plan, nil)}

	resp := a.HandleMessage(context.Background(), "create an analysis plan")
	require.True(t, resp.Success)
	assert.Contains(t, resp.Message, "20. item")
	assert.NotContains(t, resp.Message, "21. item")
}

func TestSegmentDefineAndRedefine(t *testing.T) {
	client := perception.NewScriptedClient(
		`{
			"segment_id": "seg_promoters",
			"name": "Promoters",
			"definition": {"kind": "range", "question_id": "Q_NPS", "min": 9, "max": 10, "inclusive": true}
		}`,
		`{
			"segment_id": "seg_promoters",
			"name": "Promoters",
			"definition": {"kind": "range", "question_id": "Q_NPS", "min": 8, "max": 10, "inclusive": true}
		}`,
	)
	a := newTestAgent(t, client)

	resp := a.HandleMessage(context.Background(), "define a segment of promoters")
	require.True(t, resp.Success, "errors: %v", resp.Errors)
	assert.Equal(t, contracts.IntentSegment, resp.Intent.IntentType)
	assert.Equal(t, "Created segment Promoters (seg_promoters)", resp.Message)
	require.Len(t, a.Segments(), 1)
	assert.Equal(t, float64(9), a.Segments()[0].Definition.Min)

	// Redefining the same id replaces it in place.
	resp = a.HandleMessage(context.Background(), "define a segment of promoters as 8-10")
	require.True(t, resp.Success, "errors: %v", resp.Errors)
	require.Len(t, a.Segments(), 1)
	assert.Equal(t, float64(8), a.Segments()[0].Definition.Min)
}

func TestSegmentDimensionCut(t *testing.T) {
	client := perception.NewScriptedClient(
		`{
			"segment_id": "seg_promoters",
			"name": "Promoters",
			"definition": {"kind": "range", "question_id": "Q_NPS", "min": 9, "max": 10, "inclusive": true}
		}`,
		`{
			"ok": true,
			"cut": {
				"cut_id": "sat_by_promoters",
				"metric": {"type": "mean", "question_id": "Q_SAT"},
				"dimensions": [{"kind": "segment", "id": "seg_promoters"}]
			}
		}`,
	)
	a := newTestAgent(t, client)

	require.True(t, a.HandleMessage(context.Background(), "define a segment of promoters").Success)
	resp := a.HandleMessage(context.Background(), "compare satisfaction for the promoters segment")
	require.True(t, resp.Success, "errors: %v", resp.Errors)
	assert.Contains(t, resp.Message, "Promoters (seg_promoters)")
	assert.Contains(t, resp.Message, "in")
	assert.Contains(t, resp.Message, "out")
	// Promoters are the two 9-10 respondents with Q_SAT 5 and 4.
	assert.Contains(t, resp.Message, "4.5")
}

func TestInvalidCutLeavesNoArtifacts(t *testing.T) {
	a := newTestAgent(t, perception.NewScriptedClient())
	counter := &countingExecutor{inner: a.executor}
	a.executor = counter
	a.cutPlanner = &stubCutTool{out: contracts.Success(contracts.CutSpec{
		CutID:  "bad",
		Metric: contracts.MetricSpec{Type: contracts.MetricMean, QuestionID: "Q_MISSING"},
	}, nil)}

	resp := a.HandleMessage(context.Background(), "show the missing thing by region")
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[0], contracts.CodeUnknownIdentifier)
	assert.Contains(t, resp.Errors[0], "Q_MISSING")
	assert.Zero(t, counter.calls, "a cut failing validation must never execute")
	assert.Empty(t, a.Segments())
}

func TestMetricIncompatibleCut(t *testing.T) {
	a := newTestAgent(t, perception.NewScriptedClient())
	counter := &countingExecutor{inner: a.executor}
	a.executor = counter
	a.cutPlanner = &stubCutTool{out: contracts.Success(contracts.CutSpec{
		CutID:  "mean_region",
		Metric: contracts.MetricSpec{Type: contracts.MetricMean, QuestionID: "Q_REGION"},
	}, nil)}

	resp := a.HandleMessage(context.Background(), "show the average region")
	require.False(t, resp.Success)
	assert.Contains(t, resp.Errors[0], contracts.CodeMetricIncompatible)
	assert.Zero(t, counter.calls)
}

func TestInvalidSegmentLeavesMapUntouched(t *testing.T) {
	a := newTestAgent(t, perception.NewScriptedClient())
	a.segmentBuilder = &stubSegmentTool{out: contracts.Success(contracts.SegmentSpec{
		SegmentID: "seg_ghost",
		Name:      "Ghost",
		Definition: &contracts.FilterExpr{
			Kind: contracts.KindEq, QuestionID: "Q_MISSING", Value: ptrValue(contracts.StrValue("x")),
		},
	}, nil)}

	resp := a.HandleMessage(context.Background(), "define a segment of ghosts")
	require.False(t, resp.Success)
	assert.Contains(t, resp.Errors[0], contracts.CodeUnknownIdentifier)
	assert.Empty(t, a.Segments())
}

func ptrValue(v contracts.Value) *contracts.Value { return &v }

func TestClarifyFlowAndSelection(t *testing.T) {
	a := newTestAgent(t, perception.NewScriptedClient())
	cutStub := &stubCutTool{out: contracts.Success(contracts.CutSpec{
		CutID:  "mean_sat",
		Metric: contracts.MetricSpec{Type: contracts.MetricMean, QuestionID: "Q_SAT"},
	}, nil)}
	a.cutPlanner = cutStub

	resp := a.HandleMessage(context.Background(), "analyze satisfaction")
	require.True(t, resp.Success)
	assert.Equal(t, contracts.IntentClarify, resp.Intent.IntentType)
	require.NotNil(t, resp.Clarify)
	require.Len(t, resp.Clarify.Options, 2)
	assert.Contains(t, resp.Message, "1) Analyze Overall satisfaction (Q_SAT)")
	assert.Contains(t, resp.Message, "2) Analyze Satisfaction with support (Q_CSAT_SUPPORT)")
	assert.Contains(t, resp.Message, "Reply with a number.")

	resp = a.HandleMessage(context.Background(), "1")
	require.True(t, resp.Success, "errors: %v", resp.Errors)
	assert.Equal(t, contracts.IntentCut, resp.Intent.IntentType)
	assert.Equal(t, "clarify selection", resp.Intent.Reasoning)
	assert.Contains(t, resp.Message, "Base N: 5")
	require.Len(t, cutStub.prompts, 1)
	assert.Equal(t, "analyze Q_SAT", cutStub.prompts[0])
}

func TestClarifyPlanCollision(t *testing.T) {
	a := newTestAgent(t, perception.NewScriptedClient())
	resp := a.HandleMessage(context.Background(), "plan")
	require.True(t, resp.Success)
	require.NotNil(t, resp.Clarify)
	require.Len(t, resp.Clarify.Options, 2)
	assert.Equal(t, "Create analysis plan", resp.Clarify.Options[0].Label)
	assert.Equal(t, contracts.ActionPlan, resp.Clarify.Options[0].ActionType)
	assert.Equal(t, contracts.ActionCut, resp.Clarify.Options[1].ActionType)
}

func TestClarifyCancelledByFollowUp(t *testing.T) {
	client := perception.NewScriptedClient(`{"message":"Hello again."}`)
	a := newTestAgent(t, client)

	resp := a.HandleMessage(context.Background(), "satisfaction")
	require.Equal(t, contracts.IntentClarify, resp.Intent.IntentType)
	require.NotNil(t, a.pending)

	// A non-numeric follow-up cancels the clarification and is handled as a
	// normal message in the same turn.
	resp = a.HandleMessage(context.Background(), "hello")
	require.True(t, resp.Success)
	assert.Equal(t, contracts.IntentChat, resp.Intent.IntentType)
	assert.Equal(t, "Hello again.", resp.Message)
	assert.Nil(t, a.pending)
}

func TestClarifyOutOfRangeSelection(t *testing.T) {
	client := perception.NewScriptedClient(`{"message":"Not sure what 9 means."}`)
	a := newTestAgent(t, client)

	resp := a.HandleMessage(context.Background(), "satisfaction")
	require.Equal(t, contracts.IntentClarify, resp.Intent.IntentType)

	// Out of range: clears the pending prompt, then processes "9" normally.
	resp = a.HandleMessage(context.Background(), "9")
	assert.Nil(t, a.pending)
	assert.Equal(t, contracts.IntentChat, resp.Intent.IntentType)
}

func TestToolFailureSurfacedAsErrors(t *testing.T) {
	client := (&perception.ScriptedClient{}).FailWith(errors.New("connection refused"))
	a := newTestAgent(t, client)

	resp := a.HandleMessage(context.Background(), "hello")
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[0], contracts.CodeToolError)
}

// An underspecified breakdown ("by region" without a metric) still routes
// to the cut planner; the planner's refusal comes back as planning_failed
// with nothing executed and nothing stored.
func TestUnderspecifiedBreakdownSurfacesPlannerRefusal(t *testing.T) {
	client := perception.NewScriptedClient(
		`{"ok":false,"ambiguity_options":["Which metric should the breakdown report?"]}`)
	a := newTestAgent(t, client)
	counter := &countingExecutor{}
	a.executor = counter

	resp := a.HandleMessage(context.Background(), "break down responses by channel")
	require.Equal(t, contracts.IntentCut, resp.Intent.IntentType)
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[0], contracts.CodePlanningFailed)
	assert.Equal(t, 0, counter.calls)
	assert.Empty(t, a.Segments())
}

// Error strings shown to users must carry catalog identifiers and operator
// names, never runtime internals.
var leakPattern = regexp.MustCompile(`(?i)(goroutine|panic|runtime\.|\.go:\d+|0x[0-9a-f]{4,})`)

func TestErrorsDoNotLeakInternals(t *testing.T) {
	a := newTestAgent(t, perception.NewScriptedClient())
	a.cutPlanner = &stubCutTool{out: contracts.Success(contracts.CutSpec{
		CutID:  "bad",
		Metric: contracts.MetricSpec{Type: contracts.MetricNPS, QuestionID: "Q_SAT"},
	}, nil)}

	resp := a.HandleMessage(context.Background(), "show nps for satisfaction")
	require.False(t, resp.Success)
	for _, errStr := range resp.Errors {
		assert.NotRegexp(t, leakPattern, errStr)
	}
}

func TestTurnTraceRecorded(t *testing.T) {
	client := perception.NewScriptedClient(`{"message":"hi"}`)
	a := newTestAgent(t, client)

	a.HandleMessage(context.Background(), "hello")
	tr := a.LastTrace()
	require.NotNil(t, tr)
	assert.NotEmpty(t, tr.TurnID)
	assert.Equal(t, "hello", tr.UserInput)
	require.NotEmpty(t, tr.Events)
	assert.Equal(t, "intent_classified", tr.Events[0].Type)
}
