package routing

import (
	"fmt"
	"strings"

	"crosstab/internal/contracts"
)

// maxDisambiguationOptions caps how many numbered choices a clarification
// prompt offers.
const maxDisambiguationOptions = 5

// clarifyQuestion is the fixed lead-in of every clarification prompt.
const clarifyQuestion = "I am not sure what you meant. Which of these did you want?"

// DetectAmbiguity tests a message for ambiguity before intent
// classification runs. Two triggers:
//
//  1. The input is a bare question reference (a single token, optionally
//     preceded by one analysis verb) that matches more than one question by
//     id equality or label substring.
//  2. A short input ("plan", "analyze plan") whose token "plan" collides
//     with a plan-valued question in the catalog ("plan" is both a command
//     and a data field name). Longer messages carry enough context for the
//     classifier, so "create an analysis plan" routes to the planner
//     untouched.
//
// A hit yields up to 5 options, plan-collision options first, deduplicated
// by option id with order preserved. No trigger returns nil.
func DetectAmbiguity(input string, questions []contracts.Question) *contracts.ClarifyRequest {
	tokens := tokenize(input)
	if len(tokens) == 0 {
		return nil
	}

	planCollision := len(tokens) <= 2 && hasToken(tokens, "plan") && hasPlanQuestion(questions)

	candidate := bareReferenceToken(tokens)
	var matches []contracts.Question
	if candidate != "" {
		for _, q := range questions {
			if candidate == strings.ToLower(q.QuestionID) ||
				strings.Contains(strings.ToLower(q.Label), candidate) {
				matches = append(matches, q)
			}
		}
	}

	if len(matches) <= 1 && !planCollision {
		return nil
	}

	var options []contracts.DisambiguationOption
	if planCollision {
		options = append(options, contracts.DisambiguationOption{
			OptionID:   "opt_high_level_plan",
			Label:      "Create analysis plan",
			ActionType: contracts.ActionPlan,
		})
		if q, ok := findQuestionID(questions, "Q_PLAN"); ok {
			options = append(options, analyzeOption(q))
		}
	}
	for _, q := range matches {
		options = append(options, analyzeOption(q))
	}

	options = dedupeOptions(options)
	if len(options) == 0 {
		return nil
	}
	if len(options) > maxDisambiguationOptions {
		options = options[:maxDisambiguationOptions]
	}

	return &contracts.ClarifyRequest{Question: clarifyQuestion, Options: options}
}

// bareReferenceToken extracts the token to match against the catalog: a
// single-token message, or the object of a two-token "<verb> <object>"
// message ("analyze satisfaction").
func bareReferenceToken(tokens []string) string {
	switch len(tokens) {
	case 1:
		return tokens[0]
	case 2:
		for _, verb := range analysisVerbs {
			if tokens[0] == verb {
				return tokens[1]
			}
		}
	}
	return ""
}

func hasPlanQuestion(questions []contracts.Question) bool {
	for _, q := range questions {
		if strings.EqualFold(q.QuestionID, "Q_PLAN") ||
			strings.Contains(strings.ToLower(q.Label), "plan") {
			return true
		}
	}
	return false
}

func findQuestionID(questions []contracts.Question, id string) (contracts.Question, bool) {
	for _, q := range questions {
		if strings.EqualFold(q.QuestionID, id) {
			return q, true
		}
	}
	return contracts.Question{}, false
}

func analyzeOption(q contracts.Question) contracts.DisambiguationOption {
	return contracts.DisambiguationOption{
		OptionID:     "opt_cut_" + q.QuestionID,
		Label:        fmt.Sprintf("Analyze %s (%s)", q.Label, q.QuestionID),
		ActionType:   contracts.ActionCut,
		ActionParams: map[string]string{"question_id": q.QuestionID},
	}
}

func dedupeOptions(options []contracts.DisambiguationOption) []contracts.DisambiguationOption {
	seen := make(map[string]bool, len(options))
	out := options[:0]
	for _, o := range options {
		if seen[o.OptionID] {
			continue
		}
		seen[o.OptionID] = true
		out = append(out, o)
	}
	return out
}
