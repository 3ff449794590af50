package contracts

// ToolMessage is one error or warning produced by a tool, with a machine
// code and optional debugging context. Context never reaches end users.
type ToolMessage struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// ToolOutput is the standard envelope every tool returns: either
// success-with-data or failure-with-errors, both optionally carrying
// warnings and diagnostic trace metadata.
type ToolOutput[T any] struct {
	OK       bool           `json:"ok"`
	Data     *T             `json:"data,omitempty"`
	Errors   []ToolMessage  `json:"errors,omitempty"`
	Warnings []ToolMessage  `json:"warnings,omitempty"`
	Trace    map[string]any `json:"trace,omitempty"`
}

// Success wraps data in an ok envelope.
func Success[T any](data T, trace map[string]any) ToolOutput[T] {
	return ToolOutput[T]{OK: true, Data: &data, Trace: trace}
}

// Failure wraps one or more errors in a failed envelope.
func Failure[T any](errs ...ToolMessage) ToolOutput[T] {
	return ToolOutput[T]{OK: false, Errors: errs}
}

// FailureWithTrace is Failure plus trace metadata from a completed but
// unusable collaborator call.
func FailureWithTrace[T any](trace map[string]any, errs ...ToolMessage) ToolOutput[T] {
	return ToolOutput[T]{OK: false, Errors: errs, Trace: trace}
}

// Err builds an error ToolMessage.
func Err(code, message string) ToolMessage {
	return ToolMessage{Code: code, Message: message}
}

// ErrCtx builds an error ToolMessage with debugging context.
func ErrCtx(code, message string, ctx map[string]any) ToolMessage {
	return ToolMessage{Code: code, Message: message, Context: ctx}
}

// Warn builds a warning ToolMessage.
func Warn(code, message string) ToolMessage {
	return ToolMessage{Code: code, Message: message}
}
