// Package models defines the core data structures used throughout the application.
package models

import (
	"strings"
)

// IDField is the field every record carries once inserted.
const IDField = "id"

// Record is one JSON object stored in a table.
//
// Values are whatever encoding/json produces when decoding into any: string,
// float64, bool, nil, []any and map[string]any. Records built by callers may
// also hold Go integer kinds; comparisons normalize numbers.
type Record map[string]any

// ID returns the record's id field when it is a non-empty string.
func (r Record) ID() string {
	id, _ := r[IDField].(string)
	return id
}

// Clone returns a deep copy of the record. Nested objects and arrays are
// copied too.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep copies the JSON containers in v. Other values are returned
// as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	}
	return v
}

// Operator is a condition operator.
type Operator string

const (
	// OpEquals matches equal values; text compares case-insensitively by default
	OpEquals Operator = "="
	// OpNotEquals is the negation of OpEquals
	OpNotEquals Operator = "!="
	// OpNotEqualsAlt is an alias of OpNotEquals
	OpNotEqualsAlt Operator = "<>"
	// OpGreaterThan matches values ordered after the operand
	OpGreaterThan Operator = ">"
	// OpLessThan matches values ordered before the operand
	OpLessThan Operator = "<"
	// OpGreaterEqual matches values ordered after or equal to the operand
	OpGreaterEqual Operator = ">="
	// OpLessEqual matches values ordered before or equal to the operand
	OpLessEqual Operator = "<="
	// OpLike is a substring or containment test
	OpLike Operator = "like"
	// OpNotLike is the negation of OpLike
	OpNotLike Operator = "not like"
	// OpIn is a substring or containment test
	OpIn Operator = "in"
	// OpNotIn is the negation of OpIn
	OpNotIn Operator = "not in"
	// OpBetween is an inclusive range test against a [lo, hi] pair
	OpBetween Operator = "between"
)

// ParseOperator normalizes an operator string. An empty string is OpEquals.
func ParseOperator(s string) (Operator, bool) {
	op := Operator(strings.Join(strings.Fields(strings.ToLower(s)), " "))
	if op == "" {
		return OpEquals, true
	}
	switch op {
	case OpEquals, OpNotEquals, OpNotEqualsAlt, OpGreaterThan, OpLessThan,
		OpGreaterEqual, OpLessEqual, OpLike, OpNotLike, OpIn, OpNotIn, OpBetween:
		return op, true
	}
	return op, false
}

// Condition is a (field, operator, value) predicate.
type Condition struct {
	Field    string   `json:"field" yaml:"field" jsonschema:"description=Record field to test"`
	Operator Operator `json:"op,omitempty" yaml:"op,omitempty" jsonschema:"description=Comparison operator; one of the equality or ordering symbols or like/not like/in/not in/between. Defaults to equality"`
	Value    any      `json:"value" yaml:"value" jsonschema:"description=Operand; a two element list for between"`
}

// Order is a sort direction.
type Order string

const (
	// OrderAsc sorts ascending
	OrderAsc Order = "asc"
	// OrderDesc sorts descending, as the exact reverse of ascending
	OrderDesc Order = "desc"
	// OrderRand shuffles uniformly
	OrderRand Order = "rand"
)

// OrderBy is an ordering directive.
type OrderBy struct {
	Key   string `json:"key" yaml:"key" jsonschema:"description=Field to sort by; records without it are dropped"`
	Order Order  `json:"order,omitempty" yaml:"order,omitempty" jsonschema:"description=Sort direction (default asc),enum=asc,enum=desc,enum=rand"`
}

// Limit is a pagination directive selecting [Offset, Offset+Count).
// A negative Count selects everything from Offset.
type Limit struct {
	Count  int
	Offset int
}

// QuerySpec is the pending state of one query builder session.
type QuerySpec struct {
	Table   string
	Where   []Condition
	OrWhere []Condition
	OrderBy *OrderBy
	Limit   *Limit
	// SkipConditions fetches the unfiltered table.
	SkipConditions bool
}

// Reset clears everything and binds the query to table.
func (q *QuerySpec) Reset(table string) {
	*q = QuerySpec{Table: table}
}

// NormalizeTableName lowercases name and replaces every character outside
// [a-zA-Z0-9] with '_'.
func NormalizeTableName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c >= 'A' && c <= 'Z':
			b.WriteRune(c + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
