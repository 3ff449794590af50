package engine

import (
	"crosstab/internal/contracts"
)

// metricCompatibility is the fixed metric/question-type compatibility table.
// A metric absent from the table is outside the closed set and rejected at
// the schema boundary before this check runs.
var metricCompatibility = map[contracts.MetricType]map[contracts.QuestionType]bool{
	contracts.MetricFrequency: {
		contracts.QuestionSingleChoice: true,
		contracts.QuestionMultiChoice:  true,
		contracts.QuestionLikert15:     true,
		contracts.QuestionLikert17:     true,
		contracts.QuestionNPS010:       true,
		contracts.QuestionNumeric:      true,
	},
	contracts.MetricMean: {
		contracts.QuestionLikert15: true,
		contracts.QuestionLikert17: true,
		contracts.QuestionNPS010:   true,
		contracts.QuestionNumeric:  true,
	},
	contracts.MetricTop2Box: {
		contracts.QuestionLikert15: true,
		contracts.QuestionLikert17: true,
	},
	contracts.MetricBottom2: {
		contracts.QuestionLikert15: true,
		contracts.QuestionLikert17: true,
	},
	contracts.MetricNPS: {
		contracts.QuestionNPS010: true,
	},
}

// operatorApplicability maps each predicate kind to the question types it
// may target. contains_any is multi-choice only; ordinal comparisons need an
// ordered scale; eq/in treat multi-choice as a type mismatch.
var operatorApplicability = map[string]func(contracts.QuestionType) bool{
	contracts.KindEq:          func(t contracts.QuestionType) bool { return t != contracts.QuestionMultiChoice },
	contracts.KindIn:          func(t contracts.QuestionType) bool { return t != contracts.QuestionMultiChoice },
	contracts.KindContainsAny: func(t contracts.QuestionType) bool { return t == contracts.QuestionMultiChoice },
	contracts.KindRange:       contracts.QuestionType.Ordinal,
	contracts.KindGt:          contracts.QuestionType.Ordinal,
	contracts.KindGte:         contracts.QuestionType.Ordinal,
	contracts.KindLt:          contracts.QuestionType.Ordinal,
	contracts.KindLte:         contracts.QuestionType.Ordinal,
}

// Validator checks cut and segment specifications against the active
// catalog and segment map before anything executes or mutates state.
type Validator struct {
	questions map[string]contracts.Question
	segments  map[string]contracts.SegmentSpec
}

// NewValidator builds a validator over the session's catalog and segments.
func NewValidator(questions map[string]contracts.Question, segments map[string]contracts.SegmentSpec) *Validator {
	return &Validator{questions: questions, segments: segments}
}

// ValidateCut checks schema shape, identifier existence, metric
// compatibility, and filter applicability. The first failure is returned;
// a failing cut must never reach the executor.
func (v *Validator) ValidateCut(cut contracts.CutSpec) error {
	if err := cut.Validate(); err != nil {
		return err
	}

	q, ok := v.questions[cut.Metric.QuestionID]
	if !ok {
		return errUnknownQuestion(cut.Metric.QuestionID)
	}
	if !metricCompatibility[cut.Metric.Type][q.Type] {
		return errMetricIncompatible(cut.Metric.Type, q)
	}

	for _, d := range cut.Dimensions {
		switch d.Kind {
		case contracts.DimensionQuestion:
			if _, ok := v.questions[d.ID]; !ok {
				return errUnknownQuestion(d.ID)
			}
		case contracts.DimensionSegment:
			if _, ok := v.segments[d.ID]; !ok {
				return errUnknownSegment(d.ID)
			}
		}
	}

	if cut.Filter != nil {
		return v.ValidateFilter(cut.Filter)
	}
	return nil
}

// ValidateCuts validates a batch; the first failing cut rejects the batch.
func (v *Validator) ValidateCuts(cuts []contracts.CutSpec) error {
	for _, cut := range cuts {
		if err := v.ValidateCut(cut); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSegment checks the segment's schema shape and its definition
// against the catalog.
func (v *Validator) ValidateSegment(seg contracts.SegmentSpec) error {
	if err := seg.Validate(); err != nil {
		return err
	}
	return v.ValidateFilter(seg.Definition)
}

// ValidateFilter walks the expression tree, checking identifier existence,
// operator applicability per question type, and literal domains against
// declared option sets.
func (v *Validator) ValidateFilter(expr *contracts.FilterExpr) error {
	return expr.Walk(func(node *contracts.FilterExpr) error {
		if !node.Leaf() {
			return nil
		}

		q, ok := v.questions[node.QuestionID]
		if !ok {
			return errUnknownQuestion(node.QuestionID)
		}

		applicable, known := operatorApplicability[node.Kind]
		if !known {
			return &contracts.SchemaError{Field: "kind", Detail: "unsupported filter kind " + node.Kind}
		}
		if !applicable(q.Type) {
			return errOperatorInvalid(node.Kind, q)
		}

		switch node.Kind {
		case contracts.KindRange:
			if node.Min > node.Max {
				return errInvalidRange(node.Min, node.Max, node.QuestionID)
			}
		case contracts.KindEq:
			if !q.HasOption(node.Value.Raw) {
				return errInvalidCriteriaValue(node.Value.Raw, q)
			}
		case contracts.KindIn, contracts.KindContainsAny:
			for _, val := range node.Values {
				if !q.HasOption(val.Raw) {
					return errInvalidCriteriaValue(val.Raw, q)
				}
			}
		}
		return nil
	})
}
