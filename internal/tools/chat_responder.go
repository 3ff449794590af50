package tools

import (
	"context"

	"crosstab/internal/contracts"
	"crosstab/internal/perception"
)

// ChatResponder generates a conversational reply for messages that carry no
// analysis request.
type ChatResponder struct {
	client perception.Client
}

func NewChatResponder(client perception.Client) *ChatResponder {
	return &ChatResponder{client: client}
}

func (*ChatResponder) Name() string        { return "chat_responder" }
func (*ChatResponder) Description() string { return "Generates a conversational response" }

// Run makes one completion call and returns the structured chat reply.
func (t *ChatResponder) Run(ctx context.Context, tc ToolContext) contracts.ToolOutput[contracts.ChatResponse] {
	if tc.Prompt == "" {
		return contracts.Failure[contracts.ChatResponse](contracts.Err(contracts.CodeMissingInput, "no user input provided"))
	}

	var resp contracts.ChatResponse
	trace, err := t.client.StructuredComplete(ctx, loadPrompt("chat_respond.md"), tc.Prompt, &resp)
	if err != nil {
		return contracts.Failure[contracts.ChatResponse](completionError("chat response", err))
	}
	return contracts.Success(resp, traceMap(trace))
}
