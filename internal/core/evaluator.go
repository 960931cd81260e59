package core

import (
	"math"
	"reflect"
	"strings"
)

// Evaluate reports whether the visitor satisfies the audience rule. A nil
// rule is universally satisfied. Evaluation is depth-first, left to right,
// short-circuiting inside groups, and follows a closed-world policy: an
// absent property value never satisfies a positive condition.
func Evaluate(rule *Rule, visitor Visitor) bool {
	if rule == nil {
		return true
	}

	switch {
	case rule.Group != nil:
		return evaluateGroup(rule.Group, visitor)
	case rule.Condition != nil:
		return evaluateCondition(rule.Condition, visitor)
	default:
		return false
	}
}

func evaluateGroup(group *Group, visitor Visitor) bool {
	switch group.Operator {
	case GroupAnd:
		for i := range group.Conditions {
			if !Evaluate(&group.Conditions[i], visitor) {
				return false
			}
		}
		return true
	case GroupOr:
		for i := range group.Conditions {
			if Evaluate(&group.Conditions[i], visitor) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evaluateCondition(condition *Condition, visitor Visitor) bool {
	value := ResolveProperty(condition.Property, visitor)

	switch condition.Operator {
	case OperatorIsSet:
		return value != nil && value != ""
	case OperatorEquals:
		if value == nil {
			return false
		}
		return valuesEqual(value, condition.Value)
	case OperatorContains:
		if value == nil {
			return false
		}
		return valueContains(value, condition.Value)
	default:
		return false
	}
}

func valueContains(value any, ruleValue any) bool {
	haystack, ok := value.(string)
	if !ok {
		return false
	}
	needle, ok := ruleValue.(string)
	if !ok {
		return false
	}

	return strings.Contains(haystack, needle)
}

func valuesEqual(left any, right any) bool {
	if leftInt, ok := asInt64(left); ok {
		if rightInt, ok := asInt64(right); ok {
			return leftInt == rightInt
		}

		if rightUint, ok := asUint64(right); ok {
			if leftInt < 0 {
				return false
			}
			return uint64(leftInt) == rightUint
		}

		if rightFloat, ok := asFloat64(right); ok {
			return floatEqualsInt64(rightFloat, leftInt)
		}
	}

	if leftUint, ok := asUint64(left); ok {
		if rightUint, ok := asUint64(right); ok {
			return leftUint == rightUint
		}

		if rightInt, ok := asInt64(right); ok {
			if rightInt < 0 {
				return false
			}
			return leftUint == uint64(rightInt)
		}

		if rightFloat, ok := asFloat64(right); ok {
			return floatEqualsUint64(rightFloat, leftUint)
		}
	}

	if leftFloat, ok := asFloat64(left); ok {
		if rightFloat, ok := asFloat64(right); ok {
			return leftFloat == rightFloat
		}

		if rightInt, ok := asInt64(right); ok {
			return floatEqualsInt64(leftFloat, rightInt)
		}

		if rightUint, ok := asUint64(right); ok {
			return floatEqualsUint64(leftFloat, rightUint)
		}
	}

	return reflect.DeepEqual(left, right)
}

func asInt64(value any) (int64, bool) {
	switch number := value.(type) {
	case int:
		return int64(number), true
	case int8:
		return int64(number), true
	case int16:
		return int64(number), true
	case int32:
		return int64(number), true
	case int64:
		return number, true
	default:
		return 0, false
	}
}

func asUint64(value any) (uint64, bool) {
	switch number := value.(type) {
	case uint:
		return uint64(number), true
	case uint8:
		return uint64(number), true
	case uint16:
		return uint64(number), true
	case uint32:
		return uint64(number), true
	case uint64:
		return number, true
	default:
		return 0, false
	}
}

func asFloat64(value any) (float64, bool) {
	switch number := value.(type) {
	case float32:
		return float64(number), true
	case float64:
		return number, true
	default:
		return 0, false
	}
}

func floatEqualsInt64(left float64, right int64) bool {
	if !isWholeFinite(left) {
		return false
	}

	if left < float64(math.MinInt64) || left > float64(math.MaxInt64) {
		return false
	}

	converted := int64(left)
	return float64(converted) == left && converted == right
}

func floatEqualsUint64(left float64, right uint64) bool {
	if !isWholeFinite(left) {
		return false
	}

	if left < 0 || left > float64(math.MaxUint64) {
		return false
	}

	converted := uint64(left)
	return float64(converted) == left && converted == right
}

func isWholeFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0) && math.Trunc(value) == value
}
