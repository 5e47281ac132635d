// Provides condition evaluation for records.

package jsonldb

import (
	"cmp"
	"encoding/json"
	"reflect"
	"strings"

	dberrors "github.com/maruel/jsondb/internal/errors"
	"github.com/maruel/jsondb/internal/models"
)

// validateCondition normalizes the operator and checks the operand shape.
func validateCondition(op string, c models.Condition) (models.Condition, error) {
	if c.Field == "" {
		return c, dberrors.InvalidArgument(op, "no field given")
	}
	norm, ok := models.ParseOperator(string(c.Operator))
	if !ok {
		return c, dberrors.UnsupportedOperator(string(c.Operator))
	}
	c.Operator = norm
	if norm == models.OpBetween {
		if _, _, ok := pairOf(c.Value); !ok {
			return c, dberrors.InvalidArgument(op, "value for between on field \""+c.Field+"\" must be a two element list").WithDetail("field", c.Field)
		}
	}
	return c, nil
}

// evaluateConditions returns the records of rows that satisfy every
// condition, in order. The result never aliases rows.
func evaluateConditions(rows []models.Record, conds []models.Condition, caseSensitive bool) []models.Record {
	result := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		if matchesAll(r, conds, caseSensitive) {
			result = append(result, r)
		}
	}
	return result
}

// matchesAll checks if a record matches all conditions.
func matchesAll(r models.Record, conds []models.Condition, caseSensitive bool) bool {
	for i := range conds {
		if !matchesCondition(r, &conds[i], caseSensitive) {
			return false
		}
	}
	return true
}

// matchesCondition checks if a record matches a single condition. A missing
// field never matches, whatever the operator.
func matchesCondition(r models.Record, c *models.Condition, caseSensitive bool) bool {
	value, ok := r[c.Field]
	if !ok {
		return false
	}
	switch c.Operator {
	case models.OpEquals:
		return equalValues(value, c.Value, caseSensitive)
	case models.OpNotEquals, models.OpNotEqualsAlt:
		return !equalValues(value, c.Value, caseSensitive)
	case models.OpGreaterThan:
		n, ok := compareValues(value, c.Value)
		return ok && n > 0
	case models.OpLessThan:
		n, ok := compareValues(value, c.Value)
		return ok && n < 0
	case models.OpGreaterEqual:
		n, ok := compareValues(value, c.Value)
		return ok && n >= 0
	case models.OpLessEqual:
		n, ok := compareValues(value, c.Value)
		return ok && n <= 0
	case models.OpLike, models.OpIn:
		found, ok := containsValue(value, c.Value, caseSensitive)
		return ok && found
	case models.OpNotLike, models.OpNotIn:
		found, ok := containsValue(value, c.Value, caseSensitive)
		return ok && !found
	case models.OpBetween:
		lo, hi, ok := pairOf(c.Value)
		if !ok {
			return false
		}
		nlo, ok1 := compareValues(value, lo)
		nhi, ok2 := compareValues(value, hi)
		return ok1 && ok2 && nlo >= 0 && nhi <= 0
	default:
		return false
	}
}

// equalValues is the = operator: text compares case-insensitively unless
// caseSensitive, numbers compare numerically whatever their Go kind.
func equalValues(a, b any, caseSensitive bool) bool {
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return false
		}
		if caseSensitive {
			return sa == sb
		}
		return strings.ToLower(sa) == strings.ToLower(sb)
	}
	if _, ok := toFloat(a); ok {
		n, ok := compareNumbers(a, b)
		return ok && n == 0
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}
	return reflect.DeepEqual(a, b)
}

// strictEqual is exact equality: text is case-sensitive.
func strictEqual(a, b any) bool {
	return equalValues(a, b, true)
}

// compareValues compares two values of the same kind, returning -1, 0 or 1.
// The second result is false when the kinds differ or are not ordered.
func compareValues(a, b any) (int, bool) {
	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return cmp.Compare(va, vb), true
		}
		return 0, false
	case bool:
		if vb, ok := b.(bool); ok {
			return compareBool(va, vb), true
		}
		return 0, false
	}
	return compareNumbers(a, b)
}

// compareNumbers orders two numbers of any Go kind. Two integers compare
// exactly; otherwise both go through float64.
func compareNumbers(a, b any) (int, bool) {
	if an, am, ok := exactInt(a); ok {
		if bn, bm, ok := exactInt(b); ok {
			switch {
			case an != bn && an:
				return -1, true
			case an != bn:
				return 1, true
			case an:
				return cmp.Compare(bm, am), true
			default:
				return cmp.Compare(am, bm), true
			}
		}
	}
	fa, ok := toFloat(a)
	if !ok {
		return 0, false
	}
	fb, ok := toFloat(b)
	if !ok {
		return 0, false
	}
	return cmp.Compare(fa, fb), true
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// containsValue is the like/in test. The second result is false when the
// operands cannot be tested against each other.
//
//   - text field, text operand: substring
//   - list field: the list holds the operand
//   - scalar field, list operand: the list holds the field
func containsValue(field, operand any, caseSensitive bool) (bool, bool) {
	if s, ok := field.(string); ok {
		if sub, ok := operand.(string); ok {
			if !caseSensitive {
				s, sub = strings.ToLower(s), strings.ToLower(sub)
			}
			return strings.Contains(s, sub), true
		}
	}
	if list, ok := listOf(field); ok {
		return listHas(list, operand, caseSensitive), true
	}
	if list, ok := listOf(operand); ok {
		return listHas(list, field, caseSensitive), true
	}
	return false, false
}

func listHas(list []any, v any, caseSensitive bool) bool {
	for _, item := range list {
		if equalValues(item, v, caseSensitive) {
			return true
		}
	}
	return false
}

// listOf returns the elements of a slice or array value.
func listOf(v any) ([]any, bool) {
	switch l := v.(type) {
	case nil, string, []byte:
		return nil, false
	case []any:
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// pairOf returns the bounds of a between operand.
func pairOf(v any) (any, any, bool) {
	l, ok := listOf(v)
	if !ok || len(l) != 2 {
		return nil, nil, false
	}
	return l[0], l[1], true
}

// exactInt returns an integer of any Go kind as its sign and magnitude, which
// orders every int64 and uint64 without loss.
func exactInt(v any) (neg bool, mag uint64, ok bool) {
	var i int64
	switch n := v.(type) {
	case int:
		i = int64(n)
	case int8:
		i = int64(n)
	case int16:
		i = int64(n)
	case int32:
		i = int64(n)
	case int64:
		i = n
	case uint:
		return false, uint64(n), true
	case uint8:
		return false, uint64(n), true
	case uint16:
		return false, uint64(n), true
	case uint32:
		return false, uint64(n), true
	case uint64:
		return false, n, true
	case json.Number:
		x, err := n.Int64()
		if err != nil {
			return false, 0, false
		}
		i = x
	default:
		return false, 0, false
	}
	if i < 0 {
		return true, uint64(-(i + 1)) + 1, true
	}
	return false, uint64(i), true
}

// toFloat converts any Go number to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
