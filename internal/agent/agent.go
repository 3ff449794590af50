// Package agent orchestrates one conversation over a loaded study: it
// routes each message through ambiguity detection and intent classification,
// dispatches to the matching tool, validates every specification before any
// state changes, executes cuts, and formats results for display.
package agent

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crosstab/internal/contracts"
	"crosstab/internal/dataset"
	"crosstab/internal/engine"
	"crosstab/internal/perception"
	"crosstab/internal/routing"
	"crosstab/internal/tools"
)

// Tool seams, one per collaborator. The agent depends on these rather than
// the concrete tools so tests can substitute scripted behavior.
type intentTool interface {
	Run(tc tools.ToolContext) contracts.ToolOutput[contracts.UserIntent]
}

type chatTool interface {
	Run(ctx context.Context, tc tools.ToolContext) contracts.ToolOutput[contracts.ChatResponse]
}

type planTool interface {
	Run(ctx context.Context, tc tools.ToolContext) contracts.ToolOutput[contracts.HighLevelPlan]
}

type cutTool interface {
	Run(ctx context.Context, tc tools.ToolContext) contracts.ToolOutput[contracts.CutSpec]
}

type segmentTool interface {
	Run(ctx context.Context, tc tools.ToolContext) contracts.ToolOutput[contracts.SegmentSpec]
}

type cutExecutor interface {
	ExecuteCuts(cuts []contracts.CutSpec) engine.ExecutionResult
}

// Agent holds one session: the loaded study, the segments defined so far,
// and at most one pending clarification. Not safe for concurrent use; a
// session is a single conversation.
type Agent struct {
	logger *zap.Logger

	questions     []contracts.Question
	questionsByID map[string]contracts.Question
	table         *dataset.Table
	scope         string

	segments     []contracts.SegmentSpec
	segmentsByID map[string]contracts.SegmentSpec

	classifier     intentTool
	chatResponder  chatTool
	planner        planTool
	cutPlanner     cutTool
	segmentBuilder segmentTool

	validator *engine.Validator
	executor  cutExecutor

	// pending holds the numbered options of the one outstanding
	// clarification prompt, or nil.
	pending []contracts.DisambiguationOption

	lastTrace *contracts.TurnTrace
}

// New builds an agent over a loaded dataset, with LLM-backed tools on the
// given perception client. A nil logger is replaced with a no-op logger.
func New(ds *dataset.Dataset, client perception.Client, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agent{
		logger:         logger,
		questions:      ds.Questions,
		questionsByID:  ds.QuestionsByID,
		table:          ds.Responses,
		scope:          ds.Scope,
		segmentsByID:   make(map[string]contracts.SegmentSpec),
		classifier:     tools.IntentClassifier{},
		chatResponder:  tools.NewChatResponder(client),
		planner:        tools.NewHighLevelPlanner(client),
		cutPlanner:     tools.NewCutPlanner(client),
		segmentBuilder: tools.NewSegmentBuilder(client),
	}
	// Validator and executor close over the live segment map, so segments
	// defined later in the session are visible without rebuilding them.
	a.validator = engine.NewValidator(a.questionsByID, a.segmentsByID)
	a.executor = engine.NewExecutor(a.table, a.questionsByID, a.segmentsByID)
	return a
}

// Segments returns the session's segments in definition order.
func (a *Agent) Segments() []contracts.SegmentSpec {
	out := make([]contracts.SegmentSpec, len(a.segments))
	copy(out, a.segments)
	return out
}

// LastTrace returns the diagnostic trace of the most recent turn.
func (a *Agent) LastTrace() *contracts.TurnTrace {
	return a.lastTrace
}

func (a *Agent) toolCtx(prompt string) tools.ToolContext {
	return tools.ToolContext{
		Questions:     a.questions,
		QuestionsByID: a.questionsByID,
		Segments:      a.segments,
		SegmentsByID:  a.segmentsByID,
		Scope:         a.scope,
		Prompt:        prompt,
		Table:         a.table,
	}
}

// HandleMessage processes one user message and returns the response
// envelope. Order per turn: pending clarification selection, ambiguity
// detection, intent classification, tool dispatch.
func (a *Agent) HandleMessage(ctx context.Context, userInput string) contracts.AgentResponse {
	text := strings.TrimSpace(userInput)
	trace := &contracts.TurnTrace{TurnID: uuid.NewString(), UserInput: text}
	a.lastTrace = trace

	resp := a.handle(ctx, text, trace)

	a.logger.Info("turn handled",
		zap.String("turn_id", trace.TurnID),
		zap.String("intent", string(resp.Intent.IntentType)),
		zap.Bool("success", resp.Success),
		zap.Int("errors", len(resp.Errors)))
	return resp
}

func (a *Agent) handle(ctx context.Context, text string, trace *contracts.TurnTrace) contracts.AgentResponse {
	// A pending clarification consumes valid numeric selections. Anything
	// else clears it and the message is processed normally below.
	if a.pending != nil {
		if idx, err := strconv.Atoi(text); err == nil {
			if idx >= 1 && idx <= len(a.pending) {
				action := a.pending[idx-1]
				a.pending = nil
				trace.AddEvent("pending_selection", map[string]any{"option_id": action.OptionID})
				return a.executeAction(ctx, action, trace)
			}
			a.pending = nil
			trace.AddEvent("pending_cleared", map[string]any{"reason": "selection out of range"})
		} else {
			a.pending = nil
			trace.AddEvent("pending_cleared", map[string]any{"reason": "non-numeric follow-up"})
		}
	}

	if clarify := routing.DetectAmbiguity(text, a.questions); clarify != nil {
		a.pending = clarify.Options
		trace.AddEvent("ambiguity_detected", map[string]any{"options": len(clarify.Options)})
		return contracts.AgentResponse{
			Intent:  contracts.UserIntent{IntentType: contracts.IntentClarify, Confidence: 1.0, Reasoning: "ambiguous input"},
			Success: true,
			Message: formatClarify(clarify),
			Clarify: clarify,
		}
	}

	intentOut := a.classifier.Run(a.toolCtx(text))
	if !intentOut.OK || intentOut.Data == nil {
		return failureResponse(contracts.UserIntent{IntentType: contracts.IntentChat, Reasoning: "intent classification failed"}, intentOut.Errors)
	}
	intent := *intentOut.Data
	trace.AddEvent("intent_classified", map[string]any{
		"intent_type": string(intent.IntentType),
		"confidence":  intent.Confidence,
	})

	switch intent.IntentType {
	case contracts.IntentPlan:
		return a.runPlan(ctx, text, intent, trace)
	case contracts.IntentSegment:
		return a.runSegment(ctx, text, intent, trace)
	case contracts.IntentCut:
		return a.runCut(ctx, text, intent, trace)
	default:
		return a.runChat(ctx, text, intent, trace)
	}
}

// executeAction dispatches a selected clarification option directly to its
// tool path. Re-routing the option's label through HandleMessage would
// re-trigger the same clarification for inputs like "plan".
func (a *Agent) executeAction(ctx context.Context, action contracts.DisambiguationOption, trace *contracts.TurnTrace) contracts.AgentResponse {
	selected := contracts.UserIntent{Confidence: 1.0, Reasoning: "clarify selection"}
	switch action.ActionType {
	case contracts.ActionPlan:
		selected.IntentType = contracts.IntentPlan
		return a.runPlan(ctx, "Create an analysis plan.", selected, trace)
	case contracts.ActionCut:
		selected.IntentType = contracts.IntentCut
		prompt := action.Label
		if qid := action.ActionParams["question_id"]; qid != "" {
			prompt = "analyze " + qid
		}
		return a.runCut(ctx, prompt, selected, trace)
	default:
		return a.handle(ctx, action.Label, trace)
	}
}

func (a *Agent) runPlan(ctx context.Context, prompt string, intent contracts.UserIntent, trace *contracts.TurnTrace) contracts.AgentResponse {
	out := a.planner.Run(ctx, a.toolCtx(prompt))
	if !out.OK || out.Data == nil {
		trace.AddEvent("tool_failed", map[string]any{"tool": "high_level_planner"})
		return failureResponse(intent, out.Errors)
	}
	plan := *out.Data
	trace.AddEvent("plan_created", map[string]any{"intents": len(plan.Intents)})
	return contracts.AgentResponse{Intent: intent, Success: true, Message: formatPlan(plan), Data: plan}
}

func (a *Agent) runSegment(ctx context.Context, prompt string, intent contracts.UserIntent, trace *contracts.TurnTrace) contracts.AgentResponse {
	out := a.segmentBuilder.Run(ctx, a.toolCtx(prompt))
	if !out.OK || out.Data == nil {
		trace.AddEvent("tool_failed", map[string]any{"tool": "segment_builder"})
		return failureResponse(intent, out.Errors)
	}
	seg := *out.Data

	// Validation gates the mutation: an invalid definition leaves the
	// segment map exactly as it was.
	if err := a.validator.ValidateSegment(seg); err != nil {
		trace.AddEvent("validation_failed", map[string]any{"segment_id": seg.SegmentID})
		return failureResponse(intent, []contracts.ToolMessage{validationMessage(err)})
	}

	a.storeSegment(seg)
	trace.AddEvent("segment_stored", map[string]any{"segment_id": seg.SegmentID})
	return contracts.AgentResponse{
		Intent:  intent,
		Success: true,
		Message: "Created segment " + seg.Name + " (" + seg.SegmentID + ")",
		Data:    seg,
	}
}

// storeSegment appends a new segment or replaces an existing id in place,
// preserving definition order.
func (a *Agent) storeSegment(seg contracts.SegmentSpec) {
	for i, existing := range a.segments {
		if existing.SegmentID == seg.SegmentID {
			a.segments[i] = seg
			a.segmentsByID[seg.SegmentID] = seg
			return
		}
	}
	a.segments = append(a.segments, seg)
	a.segmentsByID[seg.SegmentID] = seg
}

func (a *Agent) runCut(ctx context.Context, prompt string, intent contracts.UserIntent, trace *contracts.TurnTrace) contracts.AgentResponse {
	out := a.cutPlanner.Run(ctx, a.toolCtx(prompt))
	if !out.OK || out.Data == nil {
		trace.AddEvent("tool_failed", map[string]any{"tool": "cut_planner"})
		return failureResponse(intent, out.Errors)
	}
	cut := *out.Data
	if cut.CutID == "" {
		cut.CutID = "cut_" + uuid.NewString()[:8]
	}

	if err := a.validator.ValidateCut(cut); err != nil {
		trace.AddEvent("validation_failed", map[string]any{"cut_id": cut.CutID})
		return failureResponse(intent, []contracts.ToolMessage{validationMessage(err)})
	}

	result := a.executor.ExecuteCuts([]contracts.CutSpec{cut})
	if len(result.Errors) > 0 {
		trace.AddEvent("execution_failed", map[string]any{"cut_id": cut.CutID})
		errs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			errs = append(errs, e.Error())
		}
		return contracts.AgentResponse{Intent: intent, Success: false, Errors: errs}
	}
	trace.AddEvent("cut_executed", map[string]any{"cut_id": cut.CutID, "tables": len(result.Tables)})

	msg := formatCutSpec(cut, a.questionsByID, a.segmentsByID)
	if len(result.Tables) > 0 {
		table := result.Tables[0]
		msg += "\n\nBase N: " + strconv.Itoa(table.BaseN)
		if !table.Empty() {
			msg += "\n\n" + table.Preview(20)
		}
	}
	return contracts.AgentResponse{Intent: intent, Success: true, Message: msg, Data: result}
}

func (a *Agent) runChat(ctx context.Context, prompt string, intent contracts.UserIntent, trace *contracts.TurnTrace) contracts.AgentResponse {
	out := a.chatResponder.Run(ctx, a.toolCtx(prompt))
	if !out.OK || out.Data == nil {
		trace.AddEvent("tool_failed", map[string]any{"tool": "chat_responder"})
		return failureResponse(intent, out.Errors)
	}
	return contracts.AgentResponse{Intent: intent, Success: true, Message: out.Data.Message, Data: *out.Data}
}

// failureResponse builds an unsuccessful envelope from tool messages. Only
// the code and user-safe message cross the boundary; diagnostic context
// stays in traces.
func failureResponse(intent contracts.UserIntent, msgs []contracts.ToolMessage) contracts.AgentResponse {
	errs := make([]string, 0, len(msgs))
	for _, m := range msgs {
		errs = append(errs, m.Code+": "+m.Message)
	}
	return contracts.AgentResponse{Intent: intent, Success: false, Errors: errs}
}

// validationMessage converts an engine validation error into an envelope
// message, preserving its machine code.
func validationMessage(err error) contracts.ToolMessage {
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		return verr.ToolMessage()
	}
	var serr *contracts.SchemaError
	if errors.As(err, &serr) {
		return contracts.Err(contracts.CodeUnsupportedSchemaValue, serr.Error())
	}
	return contracts.Err(contracts.CodeToolError, err.Error())
}
