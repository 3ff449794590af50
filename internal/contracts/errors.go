package contracts

import "fmt"

// Machine-readable error codes used across tool envelopes and validation.
// These are the only codes a failure envelope may carry; user-facing
// messages are derived from them and never expose internals.
const (
	CodeMissingInput           = "missing_input"
	CodeUnknownIdentifier      = "unknown_identifier"
	CodeMetricIncompatible     = "metric_incompatible"
	CodeFilterOperatorInvalid  = "filter_operator_invalid"
	CodeInvalidCriteriaValue   = "invalid_criteria_value"
	CodeUnsupportedSchemaValue = "unsupported_schema_value"
	CodePlanningFailed         = "planning_failed"
	CodeToolError              = "tool_error"
)

// SchemaError reports a value outside a closed contract set, e.g. an
// unsupported metric type returned by the planning collaborator. It maps to
// CodeUnsupportedSchemaValue at the tool boundary.
type SchemaError struct {
	Field  string
	Detail string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}
