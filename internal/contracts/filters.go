package contracts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Filter expression kinds. Leaf predicates reference a question column;
// composite kinds combine child expressions.
const (
	KindEq          = "eq"
	KindIn          = "in"
	KindRange       = "range"
	KindContainsAny = "contains_any"
	KindGt          = "gt"
	KindGte         = "gte"
	KindLt          = "lt"
	KindLte         = "lte"
	KindAnd         = "and"
	KindOr          = "or"
	KindNot         = "not"
)

// Value is a scalar literal from a filter predicate. The planning
// collaborator may emit it as a JSON string or number; both forms are kept
// so categorical codes compare as text and ordinal bounds compare as numbers.
type Value struct {
	Raw   string
	Num   float64
	IsNum bool
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (v *Value) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return &SchemaError{Field: "value", Detail: "literal value must not be null"}
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		v.Raw = str
		if n, err := strconv.ParseFloat(str, 64); err == nil {
			v.Num = n
			v.IsNum = true
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return &SchemaError{Field: "value", Detail: fmt.Sprintf("literal must be a string or number, got %s", s)}
	}
	v.Num = n
	v.IsNum = true
	v.Raw = strconv.FormatFloat(n, 'f', -1, 64)
	return nil
}

// MarshalJSON writes numbers back as numbers and everything else as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNum {
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.Raw)
}

func (v Value) String() string { return v.Raw }

// Num returns the numeric form of s when it parses as a number.
func NumValue(n float64) Value {
	return Value{Raw: strconv.FormatFloat(n, 'f', -1, 64), Num: n, IsNum: true}
}

// StrValue builds a categorical literal. Numeric-looking strings keep their
// numeric form so they still work against likert/numeric columns.
func StrValue(s string) Value {
	v := Value{Raw: s}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		v.Num = n
		v.IsNum = true
	}
	return v
}

// FilterExpr is a node of the boolean filter tree, discriminated by Kind.
// Exactly the fields relevant to the kind are populated; Validate enforces
// the shape. The zero expression is invalid.
//
// Referenced question ids are deliberately not resolved here: a provisional
// expression from the planning collaborator may name unknown columns, and
// only validation/execution reject it.
type FilterExpr struct {
	Kind       string `json:"kind"`
	QuestionID string `json:"question_id,omitempty"`

	// eq, gt, gte, lt, lte
	Value *Value `json:"value,omitempty"`

	// in, contains_any
	Values []Value `json:"values,omitempty"`

	// range
	Min       float64 `json:"min,omitempty"`
	Max       float64 `json:"max,omitempty"`
	Inclusive bool    `json:"inclusive"`

	// and, or
	Children []*FilterExpr `json:"children,omitempty"`

	// not
	Child *FilterExpr `json:"child,omitempty"`
}

// Leaf reports whether the kind is a predicate rather than a combinator.
func (f *FilterExpr) Leaf() bool {
	switch f.Kind {
	case KindAnd, KindOr, KindNot:
		return false
	}
	return true
}

// filterExprJSON mirrors FilterExpr for decoding so that the inclusive flag
// defaults to true when the planner omits it.
type filterExprJSON FilterExpr

// UnmarshalJSON decodes an expression node, rejecting unknown kinds loudly.
func (f *FilterExpr) UnmarshalJSON(b []byte) error {
	aux := filterExprJSON{Inclusive: true}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*f = FilterExpr(aux)
	switch f.Kind {
	case KindEq, KindIn, KindRange, KindContainsAny, KindGt, KindGte,
		KindLt, KindLte, KindAnd, KindOr, KindNot:
		return nil
	case "":
		return &SchemaError{Field: "kind", Detail: "filter node is missing its kind"}
	default:
		return &SchemaError{Field: "kind", Detail: fmt.Sprintf("unsupported filter kind %q", f.Kind)}
	}
}

// Validate checks structural shape only (field presence per kind); question
// existence and operator applicability are the validators' job.
func (f *FilterExpr) Validate() error {
	switch f.Kind {
	case KindEq, KindGt, KindGte, KindLt, KindLte:
		if f.QuestionID == "" {
			return &SchemaError{Field: "question_id", Detail: f.Kind + " predicate requires a question_id"}
		}
		if f.Value == nil {
			return &SchemaError{Field: "value", Detail: f.Kind + " predicate requires a value"}
		}
	case KindIn, KindContainsAny:
		if f.QuestionID == "" {
			return &SchemaError{Field: "question_id", Detail: f.Kind + " predicate requires a question_id"}
		}
		if len(f.Values) == 0 {
			return &SchemaError{Field: "values", Detail: f.Kind + " predicate requires a non-empty value set"}
		}
	case KindRange:
		if f.QuestionID == "" {
			return &SchemaError{Field: "question_id", Detail: "range predicate requires a question_id"}
		}
	case KindAnd, KindOr:
		if len(f.Children) == 0 {
			return &SchemaError{Field: "children", Detail: f.Kind + " requires at least one child"}
		}
		for _, c := range f.Children {
			if err := c.Validate(); err != nil {
				return err
			}
		}
	case KindNot:
		if f.Child == nil {
			return &SchemaError{Field: "child", Detail: "not requires a child"}
		}
		return f.Child.Validate()
	default:
		return &SchemaError{Field: "kind", Detail: fmt.Sprintf("unsupported filter kind %q", f.Kind)}
	}
	return nil
}

// Walk visits every node in evaluation order (self, then children
// left to right). Visiting stops on the first error.
func (f *FilterExpr) Walk(visit func(node *FilterExpr) error) error {
	if err := visit(f); err != nil {
		return err
	}
	for _, c := range f.Children {
		if err := c.Walk(visit); err != nil {
			return err
		}
	}
	if f.Child != nil {
		return f.Child.Walk(visit)
	}
	return nil
}
