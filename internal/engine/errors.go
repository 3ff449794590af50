// Package engine evaluates filter expressions against the response table,
// validates cut/segment specifications against the question catalog, and
// executes validated cuts into result tables.
package engine

import (
	"fmt"

	"crosstab/internal/contracts"
)

// ValidationError is a domain validation or evaluation failure. Message is
// written to be user-safe: it names catalog identifiers and operators, never
// internal types.
type ValidationError struct {
	Code    string
	Message string
	Context map[string]any
}

func (e *ValidationError) Error() string { return e.Message }

// ToolMessage converts the error into an envelope message.
func (e *ValidationError) ToolMessage() contracts.ToolMessage {
	return contracts.ToolMessage{Code: e.Code, Message: e.Message, Context: e.Context}
}

func errUnknownQuestion(id string) *ValidationError {
	return &ValidationError{
		Code:    contracts.CodeUnknownIdentifier,
		Message: fmt.Sprintf("unknown question id %q", id),
		Context: map[string]any{"question_id": id},
	}
}

func errUnknownSegment(id string) *ValidationError {
	return &ValidationError{
		Code:    contracts.CodeUnknownIdentifier,
		Message: fmt.Sprintf("unknown segment id %q", id),
		Context: map[string]any{"segment_id": id},
	}
}

func errMetricIncompatible(metric contracts.MetricType, q contracts.Question) *ValidationError {
	return &ValidationError{
		Code: contracts.CodeMetricIncompatible,
		Message: fmt.Sprintf("metric %q cannot be computed on question %q of type %q",
			metric, q.QuestionID, q.Type),
		Context: map[string]any{"metric": string(metric), "question_id": q.QuestionID, "question_type": string(q.Type)},
	}
}

func errOperatorInvalid(kind string, q contracts.Question) *ValidationError {
	return &ValidationError{
		Code: contracts.CodeFilterOperatorInvalid,
		Message: fmt.Sprintf("filter operator %q cannot be applied to question %q of type %q",
			kind, q.QuestionID, q.Type),
		Context: map[string]any{"operator": kind, "question_id": q.QuestionID, "question_type": string(q.Type)},
	}
}

func errInvalidCriteriaValue(value string, q contracts.Question) *ValidationError {
	return &ValidationError{
		Code: contracts.CodeInvalidCriteriaValue,
		Message: fmt.Sprintf("value %q is not a declared option of question %q",
			value, q.QuestionID),
		Context: map[string]any{"value": value, "question_id": q.QuestionID},
	}
}

func errInvalidRange(min, max float64, questionID string) *ValidationError {
	return &ValidationError{
		Code: contracts.CodeInvalidCriteriaValue,
		Message: fmt.Sprintf("range bounds for question %q are inverted (min %v > max %v)",
			questionID, min, max),
		Context: map[string]any{"question_id": questionID, "min": min, "max": max},
	}
}
