package models

import (
	"fmt"
	"strings"
)

// Operator is the closed set of comparison operators a condition may use.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorContains    Operator = "contains"
)

// KnownOperator reports whether op is one of the supported operators.
func KnownOperator(op Operator) bool {
	switch op {
	case OperatorEquals, OperatorNotEquals, OperatorGreaterThan, OperatorLessThan, OperatorContains:
		return true
	}

	return false
}

// Condition is a single predicate evaluated against an execution context.
type Condition struct {
	Field    string   `json:"field"    validate:"required"`
	Operator Operator `json:"operator" validate:"required"`
	Value    any      `json:"value"`
}

// EvaluationError indicates an operator was applied to a field value whose
// type does not support it. It is a distinct failure mode, never a silent false.
type EvaluationError struct {
	Field    string
	Operator Operator
	Err      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("condition on field %q: operator %s not applicable: %v", e.Field, e.Operator, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Validate rejects conditions with an unknown operator at construction time.
func (c Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("condition field is required")
	}

	if !KnownOperator(c.Operator) {
		return fmt.Errorf("unknown condition operator %q", c.Operator)
	}

	return nil
}

// Evaluate looks up the condition's field in the context and compares it
// against the condition's value. An unknown operator evaluates to false
// without error; use Validate to reject it earlier.
func (c Condition) Evaluate(context map[string]any) (bool, error) {
	fieldValue := context[c.Field]

	switch c.Operator {
	case OperatorEquals:
		return looseEqual(fieldValue, c.Value), nil
	case OperatorNotEquals:
		return !looseEqual(fieldValue, c.Value), nil
	case OperatorGreaterThan:
		cmp, err := compareOrdered(fieldValue, c.Value)
		if err != nil {
			return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Err: err}
		}

		return cmp > 0, nil
	case OperatorLessThan:
		cmp, err := compareOrdered(fieldValue, c.Value)
		if err != nil {
			return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Err: err}
		}

		return cmp < 0, nil
	case OperatorContains:
		ok, err := contains(fieldValue, c.Value)
		if err != nil {
			return false, &EvaluationError{Field: c.Field, Operator: c.Operator, Err: err}
		}

		return ok, nil
	}

	return false, nil
}

// EvaluateAll applies AND semantics with short-circuit on the first false
// condition. The first evaluation error aborts the pass.
func EvaluateAll(conditions []Condition, context map[string]any) (bool, error) {
	for _, condition := range conditions {
		ok, err := condition.Evaluate(context)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// looseEqual compares with numeric normalization so values decoded from JSON
// (float64) match natively typed ints.
func looseEqual(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)

	if aNum && bNum {
		return fa == fb
	}

	return a == b
}

func compareOrdered(a, b any) (int, error) {
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb), nil
		}
	}

	fa, ok := toFloat(a)
	if !ok {
		return 0, fmt.Errorf("value of type %T is not ordered", a)
	}

	fb, ok := toFloat(b)
	if !ok {
		return 0, fmt.Errorf("value of type %T is not ordered", b)
	}

	switch {
	case fa > fb:
		return 1, nil
	case fa < fb:
		return -1, nil
	}

	return 0, nil
}

func contains(haystack, needle any) (bool, error) {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, fmt.Sprint(needle)), nil
	case []string:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true, nil
			}
		}

		return false, nil
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true, nil
			}
		}

		return false, nil
	}

	return false, fmt.Errorf("value of type %T does not support containment", haystack)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}

	return 0, false
}
