package database

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

// builder accumulates positional arguments while a statement is assembled.
type builder struct {
	sb   strings.Builder
	args []any
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) String() string { return b.sb.String() }

func quote(column string) string { return pq.QuoteIdentifier(column) }

func (b *builder) where(preds []store.Predicate) error {
	if len(preds) == 0 {
		return nil
	}

	terms := make([]string, 0, len(preds))
	for _, p := range preds {
		term, err := b.predicate(p)
		if err != nil {
			return err
		}
		terms = append(terms, term)
	}
	b.write(" WHERE ", strings.Join(terms, " AND "))
	return nil
}

func (b *builder) predicate(p store.Predicate) (string, error) {
	col := quote(p.Column)
	switch p.Op {
	case store.OpEq:
		return col + " = " + b.bind(argValue(p.Value)), nil
	case store.OpNeq:
		return col + " <> " + b.bind(argValue(p.Value)), nil
	case store.OpLt:
		return col + " < " + b.bind(argValue(p.Value)), nil
	case store.OpLte:
		return col + " <= " + b.bind(argValue(p.Value)), nil
	case store.OpGt:
		return col + " > " + b.bind(argValue(p.Value)), nil
	case store.OpGte:
		return col + " >= " + b.bind(argValue(p.Value)), nil
	case store.OpIsNull:
		return col + " IS NULL", nil
	case store.OpNotNull:
		return col + " IS NOT NULL", nil
	case store.OpIn:
		values, ok := p.Value.([]string)
		if !ok {
			return "", fmt.Errorf("in filter on %s expects a string list", p.Column)
		}
		return col + " = ANY(" + b.bind(pq.Array(values)) + ")", nil
	case store.OpSearch:
		if len(p.Columns) == 0 {
			return "", fmt.Errorf("search filter without columns")
		}
		pattern := b.bind("%" + escapeLike(store.FormatValue(p.Value)) + "%")
		ors := make([]string, 0, len(p.Columns))
		for _, c := range p.Columns {
			ors = append(ors, quote(c)+" ILIKE "+pattern)
		}
		return "(" + strings.Join(ors, " OR ") + ")", nil
	}
	return "", fmt.Errorf("unsupported filter op %q", p.Op)
}

func (b *builder) orderBy(orders []store.Order) {
	if len(orders) == 0 {
		return
	}
	terms := make([]string, 0, len(orders))
	for _, o := range orders {
		if o.Desc {
			terms = append(terms, quote(o.Column)+" DESC NULLS LAST")
		} else {
			terms = append(terms, quote(o.Column)+" ASC NULLS FIRST")
		}
	}
	b.write(" ORDER BY ", strings.Join(terms, ", "))
}

func columnList(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
	}
	return strings.Join(quoted, ", ")
}

func sortedKeys(rec store.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// asJSON wraps a row-returning statement so the result arrives as one JSON array.
func asJSON(inner string) string {
	return "WITH r AS (" + inner + ") SELECT coalesce(json_agg(r), '[]'::json) FROM r"
}

func buildSelect(q store.Query) (string, []any, error) {
	var b builder
	b.write("SELECT ", columnList(q.Columns), " FROM ", quote(q.Table))
	if err := b.where(q.Where); err != nil {
		return "", nil, err
	}
	b.orderBy(q.Order)
	if q.Limit > 0 {
		b.write(" LIMIT ", strconv.Itoa(q.Limit))
	}
	return asJSON(b.String()), b.args, nil
}

func buildInsert(table string, rec store.Record, onConflict string) (string, []any) {
	var b builder
	keys := sortedKeys(rec)
	placeholders := make([]string, len(keys))
	for i, k := range keys {
		placeholders[i] = b.bind(columnValue(rec[k]))
	}

	b.write("INSERT INTO ", quote(table), " (", columnList(keys), ") VALUES (", strings.Join(placeholders, ", "), ")")

	if onConflict != "" {
		var sets []string
		for _, k := range keys {
			if k == onConflict {
				continue
			}
			sets = append(sets, quote(k)+" = EXCLUDED."+quote(k))
		}
		if len(sets) == 0 {
			b.write(" ON CONFLICT (", quote(onConflict), ") DO NOTHING")
		} else {
			b.write(" ON CONFLICT (", quote(onConflict), ") DO UPDATE SET ", strings.Join(sets, ", "))
		}
	}
	b.write(" RETURNING *")
	return asJSON(b.String()), b.args
}

func buildUpdate(table string, where []store.Predicate, patch store.Record) (string, []any, error) {
	if len(patch) == 0 {
		return "", nil, fmt.Errorf("update without columns")
	}

	var b builder
	keys := sortedKeys(patch)
	sets := make([]string, len(keys))
	for i, k := range keys {
		sets[i] = quote(k) + " = " + b.bind(columnValue(patch[k]))
	}
	b.write("UPDATE ", quote(table), " SET ", strings.Join(sets, ", "))
	if err := b.where(where); err != nil {
		return "", nil, err
	}
	b.write(" RETURNING *")
	return asJSON(b.String()), b.args, nil
}

func buildDelete(table string, where []store.Predicate) (string, []any, error) {
	var b builder
	b.write("DELETE FROM ", quote(table))
	if err := b.where(where); err != nil {
		return "", nil, err
	}
	b.write(" RETURNING *")
	return asJSON(b.String()), b.args, nil
}

func buildAggregate(table string, spec store.AggregateSpec) (string, []any, error) {
	sum := "0::float8"
	if spec.Sum != "" {
		sum = "coalesce(sum(" + quote(spec.Sum) + "), 0)::float8"
	}

	var b builder
	b.write("SELECT coalesce(", quote(spec.GroupBy), "::text, '') AS key, count(*) AS count, ", sum, " AS sum FROM ", quote(table))
	if err := b.where(spec.Where); err != nil {
		return "", nil, err
	}
	b.write(" GROUP BY 1 ORDER BY 1")
	return b.String(), b.args, nil
}

func buildCall(fn string, args store.Record) (string, []any) {
	var b builder
	keys := sortedKeys(args)
	named := make([]string, len(keys))
	for i, k := range keys {
		named[i] = quote(k) + " => " + b.bind(columnValue(args[k]))
	}
	b.write("SELECT to_json(", quote(fn), "(", strings.Join(named, ", "), "))")
	return b.String(), b.args
}

// argValue converts a predicate operand into something lib/pq can bind.
func argValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return nil
		}
		return *val
	case fmt.Stringer:
		return val.String()
	}
	return v
}

// columnValue converts a decoded JSON column value for binding. String lists
// map onto text[] columns, other composites are stored as JSON.
func columnValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, float64, int, int64, time.Time:
		return val
	case *time.Time:
		return argValue(val)
	case []string:
		return pq.Array(val)
	case []any:
		strs := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return jsonText(val)
			}
			strs = append(strs, s)
		}
		return pq.Array(strs)
	case json.RawMessage:
		if len(val) == 0 {
			return nil
		}
		return string(val)
	case map[string]any:
		return jsonText(val)
	}
	return argValue(v)
}

func jsonText(v any) any {
	body, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(body)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
