package store

import (
	"encoding/json"
	"fmt"
	"time"
)

type Op string

const (
	OpEq      Op = "eq"
	OpNeq     Op = "neq"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpIsNull  Op = "is_null"
	OpNotNull Op = "not_null"
	OpIn      Op = "in"
	OpSearch  Op = "search"
)

// Predicate is one filter term. Search matches Value as a case-insensitive
// substring of any of Columns.
type Predicate struct {
	Op      Op
	Column  string
	Columns []string
	Value   any
}

func Eq(column string, value any) Predicate  { return Predicate{Op: OpEq, Column: column, Value: value} }
func Neq(column string, value any) Predicate { return Predicate{Op: OpNeq, Column: column, Value: value} }
func Lt(column string, value any) Predicate  { return Predicate{Op: OpLt, Column: column, Value: value} }
func Lte(column string, value any) Predicate { return Predicate{Op: OpLte, Column: column, Value: value} }
func Gt(column string, value any) Predicate  { return Predicate{Op: OpGt, Column: column, Value: value} }
func Gte(column string, value any) Predicate { return Predicate{Op: OpGte, Column: column, Value: value} }
func IsNull(column string) Predicate         { return Predicate{Op: OpIsNull, Column: column} }
func NotNull(column string) Predicate        { return Predicate{Op: OpNotNull, Column: column} }

func In(column string, values []string) Predicate {
	return Predicate{Op: OpIn, Column: column, Value: values}
}

func Search(term string, columns ...string) Predicate {
	return Predicate{Op: OpSearch, Columns: columns, Value: term}
}

// Range returns the bound predicates for the non-nil ends of [from, to].
func Range(column string, from, to *time.Time) []Predicate {
	var preds []Predicate
	if from != nil {
		preds = append(preds, Gte(column, *from))
	}
	if to != nil {
		preds = append(preds, Lte(column, *to))
	}
	return preds
}

type Order struct {
	Column string
	Desc   bool
}

type Query struct {
	Table   string
	Columns []string
	Where   []Predicate
	Order   []Order
	Limit   int
}

// Record is a row as column -> value.
type Record map[string]any

// ToRecord projects a struct (or map) onto its JSON columns.
func ToRecord(v any) (Record, error) {
	if rec, ok := v.(Record); ok {
		return rec, nil
	}
	if m, ok := v.(map[string]any); ok {
		return Record(m), nil
	}

	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// FormatValue renders a predicate value the way the REST backends expect it.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return "null"
		}
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
