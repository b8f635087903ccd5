package retrieval

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Operators understood in whereDocument clauses.
const (
	opContains    = "$contains"
	opNotContains = "$not_contains"
)

// metadataFilter is a where clause reduced to exact string matches.
type metadataFilter map[string]string

// documentFilter is a whereDocument clause keyed by operator.
type documentFilter map[string]string

// compileWhere reduces a where clause to exact matches. Scalars and
// {"$eq": v} are accepted, as is "$and" over such clauses. Everything else
// returns an error worded so the query author can correct it.
func compileWhere(where map[string]any) (metadataFilter, error) {
	if len(where) == 0 {
		return nil, nil
	}
	out := make(metadataFilter, len(where))
	if err := compileWhereInto(out, where); err != nil {
		return nil, err
	}
	return out, nil
}

func compileWhereInto(out metadataFilter, where map[string]any) error {
	for _, key := range sortedKeys(where) {
		v := where[key]
		if key == "$and" {
			clauses, ok := v.([]any)
			if !ok {
				return fmt.Errorf("where: $and expects an array of clauses, got %T", v)
			}
			for _, c := range clauses {
				m, ok := c.(map[string]any)
				if !ok {
					return fmt.Errorf("where: $and clause must be an object, got %T", c)
				}
				if err := compileWhereInto(out, m); err != nil {
					return err
				}
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			return fmt.Errorf("where: unsupported operator %q; only exact matches and $and are supported", key)
		}

		if ops, ok := v.(map[string]any); ok {
			eq, found := ops["$eq"]
			if !found || len(ops) != 1 {
				return fmt.Errorf("where: unsupported condition on %q; use {%q: value} or {%q: {\"$eq\": value}}", key, key, key)
			}
			v = eq
		}
		s, err := scalarString(v)
		if err != nil {
			return fmt.Errorf("where: field %q: %w", key, err)
		}
		if prev, dup := out[key]; dup && prev != s {
			return fmt.Errorf("where: conflicting values for %q", key)
		}
		out[key] = s
	}
	return nil
}

// compileWhereDocument accepts $contains and $not_contains with string operands.
func compileWhereDocument(wd map[string]any) (documentFilter, error) {
	if len(wd) == 0 {
		return nil, nil
	}
	out := make(documentFilter, len(wd))
	for _, key := range sortedKeys(wd) {
		if key != opContains && key != opNotContains {
			return nil, fmt.Errorf("whereDocument: unsupported operator %q; use %q or %q", key, opContains, opNotContains)
		}
		s, ok := wd[key].(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("whereDocument: %s expects a non-empty string", key)
		}
		out[key] = s
	}
	return out, nil
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("value must be a string, number or boolean, got %T", v)
	}
}

func (f metadataFilter) matches(meta map[string]string) bool {
	for k, want := range f {
		if got, ok := meta[k]; !ok || got != want {
			return false
		}
	}
	return true
}

func (f documentFilter) matches(content string) bool {
	if s, ok := f[opContains]; ok && !strings.Contains(content, s) {
		return false
	}
	if s, ok := f[opNotContains]; ok && strings.Contains(content, s) {
		return false
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
