// Package contracts defines the data contracts shared by the routing,
// validation, and execution layers: the question catalog, the filter
// expression AST, cut/segment specifications, and the tool output envelope.
package contracts

import "fmt"

// QuestionType identifies how a survey question is scaled.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionLikert15     QuestionType = "likert_1_5"
	QuestionLikert17     QuestionType = "likert_1_7"
	QuestionNPS010       QuestionType = "nps_0_10"
	QuestionNumeric      QuestionType = "numeric"
)

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionSingleChoice, QuestionMultiChoice, QuestionLikert15,
		QuestionLikert17, QuestionNPS010, QuestionNumeric:
		return true
	}
	return false
}

// Ordinal reports whether values of this type carry a numeric ordering.
// Ordinal comparisons (gt/gte/lt/lte/range) are only meaningful here.
func (t QuestionType) Ordinal() bool {
	switch t {
	case QuestionLikert15, QuestionLikert17, QuestionNPS010, QuestionNumeric:
		return true
	}
	return false
}

// Option is one declared answer code for a choice question.
type Option struct {
	Code  string `json:"code"`
	Label string `json:"label,omitempty"`
}

// Question is one entry in the survey catalog. Immutable once loaded; the
// response table column named QuestionID holds its answers.
type Question struct {
	QuestionID string       `json:"question_id"`
	Label      string       `json:"label"`
	Type       QuestionType `json:"type"`
	Options    []Option     `json:"options,omitempty"`
}

// Validate checks the question against the closed type set.
func (q Question) Validate() error {
	if q.QuestionID == "" {
		return &SchemaError{Field: "question_id", Detail: "question_id is required"}
	}
	if !q.Type.Valid() {
		return &SchemaError{Field: "type", Detail: fmt.Sprintf("unsupported question type %q", q.Type)}
	}
	return nil
}

// HasOption reports whether code is one of the question's declared options.
// Questions without a declared option set accept any value.
func (q Question) HasOption(code string) bool {
	if len(q.Options) == 0 {
		return true
	}
	for _, o := range q.Options {
		if o.Code == code {
			return true
		}
	}
	return false
}
