package engine

import (
	"fmt"

	"crosstab/internal/contracts"
	"crosstab/internal/dataset"
)

// Evaluate computes the boolean row mask of expr over the response table.
// Every leaf's question id must exist in both the catalog and the table, or
// evaluation fails with an identifier error; it never silently produces an
// all-false mask. Composite children are evaluated left to right so
// diagnostics are deterministic.
func Evaluate(expr *contracts.FilterExpr, table *dataset.Table, questions map[string]contracts.Question) ([]bool, error) {
	switch expr.Kind {
	case contracts.KindAnd:
		mask := newMask(table.NumRows(), true)
		for _, child := range expr.Children {
			childMask, err := Evaluate(child, table, questions)
			if err != nil {
				return nil, err
			}
			for i := range mask {
				mask[i] = mask[i] && childMask[i]
			}
		}
		return mask, nil

	case contracts.KindOr:
		mask := newMask(table.NumRows(), false)
		for _, child := range expr.Children {
			childMask, err := Evaluate(child, table, questions)
			if err != nil {
				return nil, err
			}
			for i := range mask {
				mask[i] = mask[i] || childMask[i]
			}
		}
		return mask, nil

	case contracts.KindNot:
		childMask, err := Evaluate(expr.Child, table, questions)
		if err != nil {
			return nil, err
		}
		for i := range childMask {
			childMask[i] = !childMask[i]
		}
		return childMask, nil
	}

	return evaluateLeaf(expr, table, questions)
}

func evaluateLeaf(expr *contracts.FilterExpr, table *dataset.Table, questions map[string]contracts.Question) ([]bool, error) {
	q, ok := questions[expr.QuestionID]
	if !ok {
		return nil, errUnknownQuestion(expr.QuestionID)
	}
	if !table.HasColumn(expr.QuestionID) {
		return nil, errUnknownQuestion(expr.QuestionID)
	}

	// Type mismatches fail loudly rather than evaluating to false.
	switch expr.Kind {
	case contracts.KindEq, contracts.KindIn:
		if q.Type == contracts.QuestionMultiChoice {
			return nil, errOperatorInvalid(expr.Kind, q)
		}
	case contracts.KindContainsAny:
		if q.Type != contracts.QuestionMultiChoice {
			return nil, errOperatorInvalid(expr.Kind, q)
		}
	case contracts.KindGt, contracts.KindGte, contracts.KindLt, contracts.KindLte, contracts.KindRange:
		if !q.Type.Ordinal() {
			return nil, errOperatorInvalid(expr.Kind, q)
		}
	}

	mask := newMask(table.NumRows(), false)
	for row := range mask {
		cell, _ := table.Cell(row, expr.QuestionID)
		match, err := evaluateCell(expr, q, cell)
		if err != nil {
			return nil, err
		}
		mask[row] = match
	}
	return mask, nil
}

func evaluateCell(expr *contracts.FilterExpr, q contracts.Question, cell string) (bool, error) {
	switch expr.Kind {
	case contracts.KindEq:
		return scalarEquals(q, cell, *expr.Value), nil

	case contracts.KindIn:
		for _, v := range expr.Values {
			if scalarEquals(q, cell, v) {
				return true, nil
			}
		}
		return false, nil

	case contracts.KindContainsAny:
		selected := dataset.SplitMulti(cell)
		for _, v := range expr.Values {
			for _, s := range selected {
				if s == v.Raw {
					return true, nil
				}
			}
		}
		return false, nil

	case contracts.KindRange:
		n, ok := dataset.ParseNumeric(cell)
		if !ok {
			return false, nil
		}
		if expr.Inclusive {
			return n >= expr.Min && n <= expr.Max, nil
		}
		return n > expr.Min && n < expr.Max, nil

	case contracts.KindGt, contracts.KindGte, contracts.KindLt, contracts.KindLte:
		n, ok := dataset.ParseNumeric(cell)
		if !ok || !expr.Value.IsNum {
			return false, nil
		}
		switch expr.Kind {
		case contracts.KindGt:
			return n > expr.Value.Num, nil
		case contracts.KindGte:
			return n >= expr.Value.Num, nil
		case contracts.KindLt:
			return n < expr.Value.Num, nil
		default:
			return n <= expr.Value.Num, nil
		}
	}

	// A kind added to the contract without an evaluator case is a bug; fail
	// loudly instead of guessing.
	return false, fmt.Errorf("no evaluator for filter kind %q", expr.Kind)
}

// scalarEquals compares a cell against a literal. Ordinal questions compare
// numerically when both sides parse, so "4" matches 4.0; everything else
// compares as text.
func scalarEquals(q contracts.Question, cell string, v contracts.Value) bool {
	if cell == "" {
		return false
	}
	if q.Type.Ordinal() && v.IsNum {
		if n, ok := dataset.ParseNumeric(cell); ok {
			return n == v.Num
		}
	}
	return cell == v.Raw
}

func newMask(n int, fill bool) []bool {
	mask := make([]bool, n)
	if fill {
		for i := range mask {
			mask[i] = true
		}
	}
	return mask
}
