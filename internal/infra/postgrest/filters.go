package postgrest

import (
	"fmt"
	"strings"

	postgrest "github.com/supabase-community/postgrest-go"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

// applyFilters maps predicates onto the builder. The builder keys filters by
// column, so a second predicate on the same column and every search term are
// folded into one and=(...) expression.
func applyFilters(f *postgrest.FilterBuilder, preds []store.Predicate) (*postgrest.FilterBuilder, error) {
	used := make(map[string]bool)
	var tree []string

	for _, p := range preds {
		if p.Op == store.OpSearch || used[p.Column] {
			term, err := treeTerm(p)
			if err != nil {
				return nil, err
			}
			tree = append(tree, term)
			continue
		}
		used[p.Column] = true

		value := store.FormatValue(p.Value)
		switch p.Op {
		case store.OpEq:
			f = f.Eq(p.Column, value)
		case store.OpNeq:
			f = f.Neq(p.Column, value)
		case store.OpLt:
			f = f.Lt(p.Column, value)
		case store.OpLte:
			f = f.Lte(p.Column, value)
		case store.OpGt:
			f = f.Gt(p.Column, value)
		case store.OpGte:
			f = f.Gte(p.Column, value)
		case store.OpIsNull:
			f = f.Is(p.Column, "null")
		case store.OpNotNull:
			f = f.Not(p.Column, "is", "null")
		case store.OpIn:
			values, ok := p.Value.([]string)
			if !ok {
				return nil, fmt.Errorf("in filter on %s expects a string list", p.Column)
			}
			f = f.In(p.Column, values)
		default:
			return nil, fmt.Errorf("unsupported filter op %q", p.Op)
		}
	}

	if len(tree) > 0 {
		f = f.And(strings.Join(tree, ","), "")
	}
	return f, nil
}

func treeTerm(p store.Predicate) (string, error) {
	value := quoteValue(store.FormatValue(p.Value))
	switch p.Op {
	case store.OpEq, store.OpNeq, store.OpLt, store.OpLte, store.OpGt, store.OpGte:
		return p.Column + "." + string(p.Op) + "." + value, nil
	case store.OpIsNull:
		return p.Column + ".is.null", nil
	case store.OpNotNull:
		return p.Column + ".not.is.null", nil
	case store.OpIn:
		values, ok := p.Value.([]string)
		if !ok {
			return "", fmt.Errorf("in filter on %s expects a string list", p.Column)
		}
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = quoteValue(v)
		}
		return p.Column + ".in.(" + strings.Join(quoted, ",") + ")", nil
	case store.OpSearch:
		if len(p.Columns) == 0 {
			return "", fmt.Errorf("search filter without columns")
		}
		pattern := quoteValue("*" + store.FormatValue(p.Value) + "*")
		ors := make([]string, len(p.Columns))
		for i, c := range p.Columns {
			ors[i] = c + ".ilike." + pattern
		}
		return "or(" + strings.Join(ors, ",") + ")", nil
	}
	return "", fmt.Errorf("unsupported filter op %q", p.Op)
}

// quoteValue wraps a value in double quotes so reserved characters inside
// logical trees are taken literally.
func quoteValue(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}
