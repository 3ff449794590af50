package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"crosstab/internal/contracts"
	"crosstab/internal/dataset"
)

// Segment dimension cell values: a respondent is either inside the segment
// or outside it.
const (
	segmentIn  = "in"
	segmentOut = "out"
)

// CutError records one cut's failure without aborting its siblings.
type CutError struct {
	CutID string
	Err   error
}

func (e CutError) Error() string {
	return fmt.Sprintf("cut %s: %v", e.CutID, e.Err)
}

// ExecutionResult is the outcome of a batch of cuts. SegmentsComputed holds
// the memoized segment masks keyed by segment id, shared across cuts.
type ExecutionResult struct {
	Tables           []*ResultTable
	Errors           []CutError
	SegmentsComputed map[string][]bool
}

// Executor turns validated cut specifications into result tables.
type Executor struct {
	table     *dataset.Table
	questions map[string]contracts.Question
	segments  map[string]contracts.SegmentSpec
}

// NewExecutor builds an executor over the session's table, catalog, and
// segment map.
func NewExecutor(table *dataset.Table, questions map[string]contracts.Question, segments map[string]contracts.SegmentSpec) *Executor {
	return &Executor{table: table, questions: questions, segments: segments}
}

// ExecuteCuts runs each cut independently. One cut's failure lands in
// Errors and does not affect the others. Segment masks are computed once
// per segment id per batch regardless of how many cuts reference them.
func (e *Executor) ExecuteCuts(cuts []contracts.CutSpec) ExecutionResult {
	result := ExecutionResult{SegmentsComputed: make(map[string][]bool)}
	for _, cut := range cuts {
		table, err := e.executeCut(cut, result.SegmentsComputed)
		if err != nil {
			result.Errors = append(result.Errors, CutError{CutID: cut.CutID, Err: err})
			continue
		}
		result.Tables = append(result.Tables, table)
	}
	return result
}

func (e *Executor) executeCut(cut contracts.CutSpec, segmentCache map[string][]bool) (*ResultTable, error) {
	// Base subset: rows passing the top-level filter.
	baseMask := newMask(e.table.NumRows(), true)
	if cut.Filter != nil {
		mask, err := Evaluate(cut.Filter, e.table, e.questions)
		if err != nil {
			return nil, err
		}
		baseMask = mask
	}

	var baseRows []int
	for row, keep := range baseMask {
		if keep {
			baseRows = append(baseRows, row)
		}
	}

	// Resolve each dimension to a per-row value lookup.
	dimValues := make([]func(row int) string, len(cut.Dimensions))
	dimNames := make([]string, len(cut.Dimensions))
	for i, dim := range cut.Dimensions {
		switch dim.Kind {
		case contracts.DimensionQuestion:
			if !e.table.HasColumn(dim.ID) {
				return nil, errUnknownQuestion(dim.ID)
			}
			col := dim.ID
			dimValues[i] = func(row int) string {
				cell, _ := e.table.Cell(row, col)
				return cell
			}
			dimNames[i] = dim.ID

		case contracts.DimensionSegment:
			mask, err := e.segmentMask(dim.ID, segmentCache)
			if err != nil {
				return nil, err
			}
			dimValues[i] = func(row int) string {
				if mask[row] {
					return segmentIn
				}
				return segmentOut
			}
			dimNames[i] = dim.ID

		default:
			return nil, &contracts.SchemaError{Field: "dimension.kind", Detail: "unsupported dimension kind " + string(dim.Kind)}
		}
	}

	// Cross all dimensions: group base rows by their dimension value tuple.
	groups := make(map[string][]int)
	var keys []string
	for _, row := range baseRows {
		parts := make([]string, len(dimValues))
		for i, value := range dimValues {
			parts[i] = value(row)
		}
		key := strings.Join(parts, "\x1f")
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], row)
	}
	sort.Strings(keys)

	metricQ, ok := e.questions[cut.Metric.QuestionID]
	if !ok {
		return nil, errUnknownQuestion(cut.Metric.QuestionID)
	}
	if !e.table.HasColumn(metricQ.QuestionID) {
		return nil, errUnknownQuestion(metricQ.QuestionID)
	}

	rt := &ResultTable{
		CutID:   cut.CutID,
		BaseN:   len(baseRows),
		Columns: append(dimNames[:len(dimNames):len(dimNames)], metricColumns(cut.Metric.Type)...),
	}
	for _, key := range keys {
		dims := strings.Split(key, "\x1f")
		if len(cut.Dimensions) == 0 {
			dims = nil
		}
		rows, err := e.metricRows(cut.Metric.Type, metricQ, groups[key])
		if err != nil {
			return nil, err
		}
		for _, cells := range rows {
			rt.Rows = append(rt.Rows, append(append([]string{}, dims...), cells...))
		}
	}
	return rt, nil
}

// segmentMask computes (or returns the memoized) membership mask for one
// segment within this batch.
func (e *Executor) segmentMask(segmentID string, cache map[string][]bool) ([]bool, error) {
	if mask, ok := cache[segmentID]; ok {
		return mask, nil
	}
	seg, ok := e.segments[segmentID]
	if !ok {
		return nil, errUnknownSegment(segmentID)
	}
	mask, err := Evaluate(seg.Definition, e.table, e.questions)
	if err != nil {
		return nil, err
	}
	cache[segmentID] = mask
	return mask, nil
}

func metricColumns(metric contracts.MetricType) []string {
	switch metric {
	case contracts.MetricFrequency:
		return []string{"category", "count", "percent"}
	case contracts.MetricMean:
		return []string{"mean", "n"}
	case contracts.MetricTop2Box:
		return []string{"top2box_pct", "n"}
	case contracts.MetricBottom2:
		return []string{"bottom2box_pct", "n"}
	case contracts.MetricNPS:
		return []string{"nps", "promoters_pct", "detractors_pct", "n"}
	}
	return nil
}

// metricRows computes the metric cells for one group of rows. Blank cells
// count as missing and stay out of every denominator.
func (e *Executor) metricRows(metric contracts.MetricType, q contracts.Question, rows []int) ([][]string, error) {
	switch metric {
	case contracts.MetricFrequency:
		return e.frequencyRows(q, rows), nil

	case contracts.MetricMean:
		var sum float64
		var n int
		for _, row := range rows {
			cell, _ := e.table.Cell(row, q.QuestionID)
			if v, ok := dataset.ParseNumeric(cell); ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			return [][]string{{"", "0"}}, nil
		}
		return [][]string{{formatFloat(sum / float64(n)), strconv.Itoa(n)}}, nil

	case contracts.MetricTop2Box, contracts.MetricBottom2:
		lo, hi := boxBounds(metric, q.Type)
		var inBox, n int
		for _, row := range rows {
			cell, _ := e.table.Cell(row, q.QuestionID)
			v, ok := dataset.ParseNumeric(cell)
			if !ok {
				continue
			}
			n++
			if v >= lo && v <= hi {
				inBox++
			}
		}
		return [][]string{{percent(inBox, n), strconv.Itoa(n)}}, nil

	case contracts.MetricNPS:
		var promoters, detractors, n int
		for _, row := range rows {
			cell, _ := e.table.Cell(row, q.QuestionID)
			v, ok := dataset.ParseNumeric(cell)
			if !ok {
				continue
			}
			n++
			switch {
			case v >= 9:
				promoters++
			case v <= 6:
				detractors++
			}
		}
		if n == 0 {
			return [][]string{{"", "", "", "0"}}, nil
		}
		p := float64(promoters) / float64(n) * 100
		d := float64(detractors) / float64(n) * 100
		return [][]string{{formatFloat(p - d), percent(promoters, n), percent(detractors, n), strconv.Itoa(n)}}, nil
	}

	return nil, &contracts.SchemaError{Field: "metric.type", Detail: "unsupported metric type " + string(metric)}
}

// frequencyRows counts responses per category. Multi-choice cells
// contribute one count per selected code; the denominator is respondents
// with at least one answer.
func (e *Executor) frequencyRows(q contracts.Question, rows []int) [][]string {
	counts := make(map[string]int)
	var categories []string
	respondents := 0
	for _, row := range rows {
		cell, _ := e.table.Cell(row, q.QuestionID)
		var codes []string
		if q.Type == contracts.QuestionMultiChoice {
			codes = dataset.SplitMulti(cell)
		} else if cell != "" {
			codes = []string{cell}
		}
		if len(codes) == 0 {
			continue
		}
		respondents++
		for _, code := range codes {
			if _, seen := counts[code]; !seen {
				categories = append(categories, code)
			}
			counts[code]++
		}
	}
	sort.Strings(categories)

	out := make([][]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, []string{c, strconv.Itoa(counts[c]), percent(counts[c], respondents)})
	}
	return out
}

// boxBounds returns the value band counted by top2box/bottom2box for a
// likert scale.
func boxBounds(metric contracts.MetricType, t contracts.QuestionType) (float64, float64) {
	top := 5.0
	if t == contracts.QuestionLikert17 {
		top = 7.0
	}
	if metric == contracts.MetricTop2Box {
		return top - 1, top
	}
	return 1, 2
}

func percent(part, whole int) string {
	if whole == 0 {
		return ""
	}
	return formatFloat(float64(part) / float64(whole) * 100)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
