package agent

import (
	"fmt"
	"strings"

	"crosstab/internal/contracts"
)

// questionLabel renders "Label (Q_ID)", falling back to the bare id for
// identifiers outside the catalog.
func questionLabel(id string, questions map[string]contracts.Question) string {
	if q, ok := questions[id]; ok {
		return fmt.Sprintf("%s (%s)", q.Label, q.QuestionID)
	}
	return id
}

func segmentLabel(id string, segments map[string]contracts.SegmentSpec) string {
	if s, ok := segments[id]; ok {
		return fmt.Sprintf("%s (%s)", s.Name, s.SegmentID)
	}
	return id
}

func formatValues(values []contracts.Value) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, v.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatFilter renders a filter tree in the infix form shown to users.
func formatFilter(expr *contracts.FilterExpr, questions map[string]contracts.Question) string {
	label := questionLabel(expr.QuestionID, questions)
	switch expr.Kind {
	case contracts.KindEq:
		return fmt.Sprintf("%s == %s", label, expr.Value)
	case contracts.KindIn:
		return fmt.Sprintf("%s in %s", label, formatValues(expr.Values))
	case contracts.KindRange:
		op := "between"
		if !expr.Inclusive {
			op = "strictly between"
		}
		return fmt.Sprintf("%s %s [%v, %v]", label, op, expr.Min, expr.Max)
	case contracts.KindContainsAny:
		return fmt.Sprintf("%s contains any of %s", label, formatValues(expr.Values))
	case contracts.KindGt:
		return fmt.Sprintf("%s > %s", label, expr.Value)
	case contracts.KindGte:
		return fmt.Sprintf("%s >= %s", label, expr.Value)
	case contracts.KindLt:
		return fmt.Sprintf("%s < %s", label, expr.Value)
	case contracts.KindLte:
		return fmt.Sprintf("%s <= %s", label, expr.Value)
	case contracts.KindAnd, contracts.KindOr:
		join := " AND "
		if expr.Kind == contracts.KindOr {
			join = " OR "
		}
		parts := make([]string, 0, len(expr.Children))
		for _, c := range expr.Children {
			parts = append(parts, formatFilter(c, questions))
		}
		return "(" + strings.Join(parts, join) + ")"
	case contracts.KindNot:
		return "(NOT " + formatFilter(expr.Child, questions) + ")"
	}
	return expr.Kind
}

// formatCutSpec renders the echoed specification block shown above every
// cut result.
func formatCutSpec(cut contracts.CutSpec, questions map[string]contracts.Question, segments map[string]contracts.SegmentSpec) string {
	metric := fmt.Sprintf("%s on %s", cut.Metric.Type, questionLabel(cut.Metric.QuestionID, questions))

	dims := make([]string, 0, len(cut.Dimensions))
	for _, d := range cut.Dimensions {
		if d.Kind == contracts.DimensionQuestion {
			dims = append(dims, questionLabel(d.ID, questions))
		} else {
			dims = append(dims, segmentLabel(d.ID, segments))
		}
	}
	dimLine := "(none)"
	if len(dims) > 0 {
		dimLine = strings.Join(dims, ", ")
	}
	filterLine := "(none)"
	if cut.Filter != nil {
		filterLine = formatFilter(cut.Filter, questions)
	}

	lines := []string{
		"CutSpec:",
		"- cut_id: " + cut.CutID,
		"- metric: " + metric,
		"- dimensions: " + dimLine,
		"- filter: " + filterLine,
	}
	if len(cut.Metric.Params) > 0 {
		lines = append(lines, fmt.Sprintf("- metric_params: %v", cut.Metric.Params))
	}
	return strings.Join(lines, "\n")
}

// formatPlan renders a numbered analysis plan, capped at 20 intents.
func formatPlan(plan contracts.HighLevelPlan) string {
	lines := []string{"Analysis plan:"}
	for i, intent := range plan.Intents {
		if i >= 20 {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s (priority %d)", i+1, intent.Description, intent.Priority))
	}
	return strings.Join(lines, "\n")
}

// formatClarify renders the numbered clarification prompt.
func formatClarify(req *contracts.ClarifyRequest) string {
	lines := []string{req.Question, "", "Please choose one:"}
	for i, opt := range req.Options {
		lines = append(lines, fmt.Sprintf("%d) %s", i+1, opt.Label))
	}
	lines = append(lines, "Reply with a number.")
	return strings.Join(lines, "\n")
}
