// Query documents: a YAML or JSON rendition of a query builder chain.

package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// QueryDoc describes a query declaratively.
//
// Example:
//
//	table: users
//	where:
//	  - {field: name, op: "=", value: ann}
//	order_by: {key: age, order: desc}
//	limit: {count: 10}
type QueryDoc struct {
	Table   string      `json:"table,omitempty" yaml:"table,omitempty" jsonschema:"description=Table name; normalized before use"`
	Where   []Condition `json:"where,omitempty" yaml:"where,omitempty" jsonschema:"description=Conditions that must all hold"`
	OrWhere []Condition `json:"or_where,omitempty" yaml:"or_where,omitempty" jsonschema:"description=Conditions evaluated over the whole table and unioned with the where result"`
	OrderBy *OrderBy    `json:"order_by,omitempty" yaml:"order_by,omitempty" jsonschema:"description=Ordering directive"`
	Limit   *LimitDoc   `json:"limit,omitempty" yaml:"limit,omitempty" jsonschema:"description=Pagination directive"`
}

// LimitDoc is the document form of Limit. A missing count means "to the end".
type LimitDoc struct {
	Count  *int `json:"count,omitempty" yaml:"count,omitempty" jsonschema:"description=Maximum number of records,minimum=0"`
	Offset int  `json:"offset,omitempty" yaml:"offset,omitempty" jsonschema:"description=Number of records to skip,minimum=0"`
}

// ToLimit converts the document form to a Limit.
func (l *LimitDoc) ToLimit() Limit {
	if l.Count == nil {
		return Limit{Count: -1, Offset: l.Offset}
	}
	return Limit{Count: *l.Count, Offset: l.Offset}
}

// Validate checks that the document is well-formed.
func (d *QueryDoc) Validate() error {
	if len(d.OrWhere) > 0 && len(d.Where) == 0 {
		return errors.New("or_where requires where")
	}
	for _, group := range [][]Condition{d.Where, d.OrWhere} {
		for i, c := range group {
			if c.Field == "" {
				return fmt.Errorf("condition %d: field is required", i)
			}
			if _, ok := ParseOperator(string(c.Operator)); !ok {
				return fmt.Errorf("condition %d: operator %q not supported", i, c.Operator)
			}
		}
	}
	if d.OrderBy != nil && d.OrderBy.Key == "" {
		return errors.New("order_by: key is required")
	}
	if d.Limit != nil {
		if d.Limit.Offset < 0 {
			return errors.New("limit: offset must not be negative")
		}
		if d.Limit.Count != nil && *d.Limit.Count < 0 {
			return errors.New("limit: count must not be negative")
		}
	}
	return nil
}

// ParseQueryDoc decodes a YAML (or JSON) query document.
func ParseQueryDoc(data []byte) (*QueryDoc, error) {
	var doc QueryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse query document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query document: %w", err)
	}
	return &doc, nil
}

// QueryDocSchema returns the JSON Schema of QueryDoc, for editors that
// validate query files.
func QueryDocSchema() ([]byte, error) {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	schema := r.Reflect(&QueryDoc{})
	schema.Title = "jsondb query document"
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
