package rule

import (
	"reflect"
	"strings"

	"github.com/greybell/butler/pkg/domain"
)

// ---------------------------------------------------------------------------
// Condition matching
// ---------------------------------------------------------------------------

// Filter operators. Multiple operators on the same field are ANDed.
const (
	OpEq       = "$eq"
	OpNe       = "$ne"
	OpGt       = "$gt"
	OpGte      = "$gte"
	OpLt       = "$lt"
	OpLte      = "$lte"
	OpIn       = "$in"
	OpContains = "$contains"
)

// Matches reports whether an event satisfies this condition: source and
// event type patterns must match, and every filter must hold against the
// event payload. A payload field absent from the event fails its filter.
func (c TriggerCondition) Matches(event domain.AgentEvent) bool {
	if !patternMatches(c.Source, event.Source) {
		return false
	}
	if !patternMatches(c.EventType, event.Type) {
		return false
	}

	for field, filter := range c.Filters {
		if !event.Payload.Has(field) {
			return false
		}
		if !MatchFilter(event.Payload.Get(field), filter) {
			return false
		}
	}
	return true
}

func patternMatches(pattern, value string) bool {
	return pattern == domain.WildcardPattern || pattern == value
}

// MatchFilter evaluates one filter value against a payload value. A plain
// filter value means exact equality; an operator object applies every
// operator it lists. Unknown operators never hold.
func MatchFilter(value, filter interface{}) bool {
	ops, ok := operatorObject(filter)
	if !ok {
		return equals(value, filter)
	}

	for op, operand := range ops {
		if !applyOperator(op, value, operand) {
			return false
		}
	}
	return true
}

// operatorObject reports whether the filter is an operator object: a map
// whose keys all carry the "$" prefix.
func operatorObject(filter interface{}) (map[string]interface{}, bool) {
	m, ok := filter.(map[string]interface{})
	if !ok || len(m) == 0 {
		return nil, false
	}
	for key := range m {
		if !strings.HasPrefix(key, "$") {
			return nil, false
		}
	}
	return m, true
}

func applyOperator(op string, value, operand interface{}) bool {
	switch op {
	case OpEq:
		return equals(value, operand)
	case OpNe:
		return !equals(value, operand)
	case OpGt:
		cmp, ok := compareOrdered(value, operand)
		return ok && cmp > 0
	case OpGte:
		cmp, ok := compareOrdered(value, operand)
		return ok && cmp >= 0
	case OpLt:
		cmp, ok := compareOrdered(value, operand)
		return ok && cmp < 0
	case OpLte:
		cmp, ok := compareOrdered(value, operand)
		return ok && cmp <= 0
	case OpIn:
		return memberOf(operand, value)
	case OpContains:
		return containsValue(value, operand)
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Value comparison helpers
// ---------------------------------------------------------------------------

// equals compares two values, coercing numerics so that int 42 equals the
// float64 42 a JSON decode produces.
func equals(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compareOrdered returns -1/0/+1 for two ordered values, or ok=false when
// the values are not comparable (mixed or unordered types).
func compareOrdered(a, b interface{}) (int, bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// memberOf reports whether value appears in the operand list.
func memberOf(operand, value interface{}) bool {
	switch list := operand.(type) {
	case []interface{}:
		for _, item := range list {
			if equals(value, item) {
				return true
			}
		}
	case []string:
		for _, item := range list {
			if equals(value, item) {
				return true
			}
		}
	}
	return false
}

// containsValue reports substring containment for strings and membership
// for list payload values.
func containsValue(value, operand interface{}) bool {
	switch container := value.(type) {
	case string:
		needle, ok := operand.(string)
		return ok && strings.Contains(container, needle)
	case []interface{}:
		for _, item := range container {
			if equals(item, operand) {
				return true
			}
		}
	case []string:
		for _, item := range container {
			if equals(item, operand) {
				return true
			}
		}
	}
	return false
}
