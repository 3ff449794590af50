package tools

import (
	"crosstab/internal/contracts"
	"crosstab/internal/routing"
)

// IntentClassifier routes a message onto the closed intent set. It wraps
// the deterministic rule tiers in internal/routing: classification must be
// reproducible and free, so no collaborator call is made here.
type IntentClassifier struct{}

func (IntentClassifier) Name() string        { return "intent_classifier" }
func (IntentClassifier) Description() string { return "Classifies user input into intent types for routing" }

// Run classifies the prompt against the question catalog.
func (IntentClassifier) Run(ctx ToolContext) contracts.ToolOutput[contracts.UserIntent] {
	if ctx.Prompt == "" {
		return contracts.Failure[contracts.UserIntent](contracts.Err(contracts.CodeMissingInput, "no user input provided"))
	}
	intent := routing.Classify(ctx.Prompt, ctx.Questions)
	return contracts.Success(intent, map[string]any{"classifier": "rules", "reasoning": intent.Reasoning})
}
