package automation

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator is the closed set of condition operators.
type Operator string

const (
	OpEqual    Operator = "="
	OpNotEqual Operator = "!="
	OpGreater  Operator = ">"
	OpLess     Operator = "<"
	OpContains Operator = "contains"
	OpIn       Operator = "in"
)

// Condition is one comparison against the event context. Value comes from
// rule JSON, so numbers arrive as float64 and sequences as []interface{}.
type Condition struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// EvaluateConditions ANDs all conditions against the context. An empty list
// matches vacuously; the first failing condition short-circuits. Evaluation
// is total: malformed input fails the condition instead of panicking.
func EvaluateConditions(conditions []Condition, ctx *Context) bool {
	for _, cond := range conditions {
		if !evaluateCondition(cond, ctx) {
			return false
		}
	}
	return true
}

func evaluateCondition(cond Condition, ctx *Context) bool {
	actual, _ := ctx.Resolve(cond.Field)

	switch cond.Operator {
	case OpEqual:
		return looseEqual(actual, cond.Value)
	case OpNotEqual:
		return !looseEqual(actual, cond.Value)
	case OpGreater:
		return numericCompare(actual, cond.Value, func(a, b float64) bool { return a > b })
	case OpLess:
		return numericCompare(actual, cond.Value, func(a, b float64) bool { return a < b })
	case OpContains:
		return strings.Contains(render(actual), render(cond.Value))
	case OpIn:
		seq, ok := cond.Value.([]interface{})
		if !ok {
			return false
		}
		for _, v := range seq {
			if looseEqual(actual, v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// looseEqual compares numerically when both operands are numeric (numeric
// strings included), otherwise by their string rendering. nil only equals
// nil. This is the documented coercion rule for the = and != operators.
func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return render(a) == render(b)
}

// numericCompare applies cmp to both operands as floats; a non-numeric
// operand fails the comparison.
func numericCompare(a, b interface{}, cmp func(a, b float64) bool) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return false
	}
	return cmp(af, bf)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
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
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func render(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
