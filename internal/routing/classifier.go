// Package routing holds the deterministic request-routing layer: the tiered
// intent classifier and the ambiguity detector. Both are pure functions of
// (input text, question catalog) with no randomness and no external calls,
// so every routing decision is unit-testable offline.
package routing

import (
	"fmt"
	"strings"

	"crosstab/internal/contracts"
)

// Pattern tables, ordered. Within a table, first match wins; across tiers,
// an earlier tier always beats a later one. Matching is case-insensitive
// substring/token matching with no stemming.

// Tier 1: explicit analysis-planning phrases.
var planningPhrases = []string{
	"create an analysis plan",
	"analysis plan",
	"plan the analysis",
	"plan the analyses",
	"what should we analyze",
	"what should we analyse",
	"what should i analyze",
	"suggest a plan",
	"give me a roadmap",
	"roadmap",
}

// analysisVerbs signal that the user wants numbers, not definitions.
var analysisVerbs = []string{
	"analyze",
	"analyse",
	"show",
	"display",
	"break down",
	"breakdown",
	"distribution",
	"frequency",
	"average",
	"mean",
	"compare",
	"tabulate",
	"what is the",
}

// segmentNouns and segmentCreationPhrases signal segment work. The nouns
// participate in the tier-2 override; the phrases are the explicit
// creation patterns of tier 3.
var segmentNouns = []string{"segment", "cohort", "audience"}

var segmentCreationPhrases = []string{
	"define segment",
	"define a segment",
	"create segment",
	"create a segment",
	"build a segment",
	"create a cohort",
	"build a cohort",
	"cohort for",
	"create an audience",
	"audience of",
	"users who are",
	"customers who are",
	"respondents who are",
	"users aged",
	"customers aged",
	"filter to",
}

// Tier-2 creation indicators: weaker than tier-3 phrases, only used to
// detect that a mixed message also asks for a definition.
var segmentCreationVerbs = []string{"define", "create", "build"}

/// Tier 4: conversational patterns. Exact words match as tokens so that
// "hi" does not fire inside "which"; phrases match as substrings. This
// tier runs before the reference-based cut tier precisely so that casual
// use of domain words ("plan", "segment") stays conversational.
var chatTokens = []string{"hello", "hi", "hey", "help", "thanks", "yo"}

var chatPhrases = []string{
	"thank you",
	"what can you do",
	"what do you do",
	"how does this work",
	"how do you work",
	"what is a",
	"what's a",
	"who are you",
	"good morning",
	"good afternoon",
	"pricing plan",
	"my plan is",
}

// classified is one tier's verdict; nil means fall through to the next tier.
type tierFunc func(in classifierInput) *contracts.UserIntent

// tiers is the full cascade in priority order. Keeping it as data makes the
// priority order auditable and lets tests exercise tiers independently.
var tiers = []struct {
	name     string
	classify tierFunc
}{
	{"planning_phrases", matchPlanningPhrase},
	{"multi_intent_override", matchMultiIntent},
	{"segment_creation", matchSegmentCreation},
	{"conversational", matchConversational},
	{"cut_signals", matchCutSignals},
}

// classifierInput is the normalized view of one message all tiers share.
type classifierInput struct {
	text      string   // lower-cased, trimmed
	tokens    []string // punctuation-stripped word tokens
	questions []contracts.Question
}

// Classify maps free text plus the question catalog onto a routing intent.
// Deterministic and stateless; ties within a tier resolve by pattern list
// order.
func Classify(prompt string, questions []contracts.Question) contracts.UserIntent {
	in := classifierInput{
		text:      strings.ToLower(strings.TrimSpace(prompt)),
		tokens:    tokenize(prompt),
		questions: questions,
	}
	if in.text == "" {
		return contracts.UserIntent{IntentType: contracts.IntentChat, Confidence: 0.5, Reasoning: "empty input"}
	}
	for _, tier := range tiers {
		if intent := tier.classify(in); intent != nil {
			return *intent
		}
	}
	return contracts.UserIntent{IntentType: contracts.IntentChat, Confidence: 0.5, Reasoning: "no clear pattern"}
}

func matchPlanningPhrase(in classifierInput) *contracts.UserIntent {
	for _, phrase := range planningPhrases {
		if strings.Contains(in.text, phrase) {
			return &contracts.UserIntent{
				IntentType: contracts.IntentPlan,
				Confidence: 0.95,
				Reasoning:  fmt.Sprintf("matched planning phrase %q", phrase),
			}
		}
	}
	return nil
}

// matchMultiIntent resolves mixed requests like "define promoters as 9-10
// and show nps by region": when an analysis verb co-occurs with segment
// vocabulary, the analysis action wins so the request executes instead of
// merely defining.
func matchMultiIntent(in classifierInput) *contracts.UserIntent {
	verb := firstMatch(in.text, analysisVerbs)
	if verb == "" {
		return nil
	}
	if noun := firstMatch(in.text, segmentNouns); noun != "" {
		return &contracts.UserIntent{
			IntentType: contracts.IntentCut,
			Confidence: 0.9,
			Reasoning:  fmt.Sprintf("analysis verb %q outranks segment noun %q", verb, noun),
		}
	}
	if creation := firstTokenMatch(in.tokens, segmentCreationVerbs); creation != "" {
		return &contracts.UserIntent{
			IntentType: contracts.IntentCut,
			Confidence: 0.9,
			Reasoning:  fmt.Sprintf("analysis verb %q outranks creation verb %q", verb, creation),
		}
	}
	return nil
}

func matchSegmentCreation(in classifierInput) *contracts.UserIntent {
	for _, phrase := range segmentCreationPhrases {
		if strings.Contains(in.text, phrase) {
			return &contracts.UserIntent{
				IntentType: contracts.IntentSegment,
				Confidence: 0.95,
				Reasoning:  fmt.Sprintf("matched segment creation phrase %q", phrase),
			}
		}
	}
	return nil
}

func matchConversational(in classifierInput) *contracts.UserIntent {
	if token := firstTokenMatch(in.tokens, chatTokens); token != "" {
		return &contracts.UserIntent{
			IntentType: contracts.IntentChat,
			Confidence: 0.9,
			Reasoning:  fmt.Sprintf("conversational token %q", token),
		}
	}
	if phrase := firstMatch(in.text, chatPhrases); phrase != "" {
		return &contracts.UserIntent{
			IntentType: contracts.IntentChat,
			Confidence: 0.9,
			Reasoning:  fmt.Sprintf("conversational phrase %q", phrase),
		}
	}
	return nil
}

// matchCutSignals checks reference-based signals in descending strength:
// question reference with a verb, bare question reference, "by"-breakdown
// with a verb, then verb plus label-token overlap.
func matchCutSignals(in classifierInput) *contracts.UserIntent {
	verb := firstMatch(in.text, analysisVerbs)
	referenced := referencedQuestion(in)

	if referenced != "" && verb != "" {
		return &contracts.UserIntent{
			IntentType: contracts.IntentCut,
			Confidence: 0.95,
			Reasoning:  fmt.Sprintf("question reference %q with analysis verb %q", referenced, verb),
		}
	}
	if referenced != "" {
		return &contracts.UserIntent{
			IntentType: contracts.IntentCut,
			Confidence: 0.85,
			Reasoning:  fmt.Sprintf("bare question reference %q", referenced),
		}
	}
	if verb != "" && hasToken(in.tokens, "by") {
		return &contracts.UserIntent{
			IntentType: contracts.IntentCut,
			Confidence: 0.8,
			Reasoning:  fmt.Sprintf("dimensional breakdown pattern with verb %q", verb),
		}
	}
	if verb != "" {
		if overlap := labelTokenOverlap(in); overlap != "" {
			return &contracts.UserIntent{
				IntentType: contracts.IntentCut,
				Confidence: 0.75,
				Reasoning:  fmt.Sprintf("analysis verb %q with label token %q", verb, overlap),
			}
		}
	}
	return nil
}

// referencedQuestion returns the first question whose id appears as a token
// or whose full label appears as a consecutive token phrase of the input.
// Token-level matching keeps "average" from matching a label like "Age".
func referencedQuestion(in classifierInput) string {
	for _, q := range in.questions {
		idLower := strings.ToLower(q.QuestionID)
		if hasToken(in.tokens, idLower) {
			return q.QuestionID
		}
		if containsPhrase(in.tokens, tokenize(q.Label)) {
			return q.QuestionID
		}
	}
	return ""
}

// containsPhrase reports whether phrase occurs as consecutive tokens.
func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, p := range phrase {
			if tokens[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// labelTokenOverlap returns the first input token that also appears as a
// word of some question label. Short tokens are skipped to avoid matching
// articles and prepositions.
func labelTokenOverlap(in classifierInput) string {
	for _, tok := range in.tokens {
		if len(tok) < 4 {
			continue
		}
		for _, q := range in.questions {
			for _, labelTok := range tokenize(q.Label) {
				if tok == labelTok {
					return tok
				}
			}
		}
	}
	return ""
}

func firstMatch(text string, patterns []string) string {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return p
		}
	}
	return ""
}

func firstTokenMatch(tokens, wanted []string) string {
	for _, w := range wanted {
		if hasToken(tokens, w) {
			return w
		}
	}
	return ""
}

func hasToken(tokens []string, want string) bool {
	for _, tok := range tokens {
		if tok == want {
			return true
		}
	}
	return false
}

// tokenize lower-cases the text and splits it on whitespace after dropping
// punctuation. Underscores survive so question ids stay whole tokens.
func tokenize(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}
