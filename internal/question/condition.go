package question

import (
	"strconv"
	"strings"
)

// A condition is a conjunction of equality clauses over the assignment,
// authored as `var === literal && var === literal`. The string is parsed
// once at the boundary into a typed form; operators outside the grammar
// (!==, <, ||, nesting) are rejected instead of silently misparsed.

// Clause is one `variable === literal` equality test.
type Clause struct {
	Var     string
	Literal string
}

// Condition is the conjunction of its clauses; it matches an assignment
// only if every clause holds.
type Condition []Clause

// ParseCondition parses a stored condition string.
func ParseCondition(s string) (Condition, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, configErr("", "empty condition")
	}
	if strings.Contains(trimmed, "||") {
		return nil, configErr("", "condition %q: disjunction is not supported", s)
	}
	if strings.Contains(trimmed, "!==") || strings.Contains(trimmed, "!=") {
		return nil, configErr("", "condition %q: only === comparisons are supported", s)
	}
	var cond Condition
	for _, part := range strings.Split(trimmed, "&&") {
		fields := strings.SplitN(part, "===", 2)
		if len(fields) != 2 {
			return nil, configErr("", "condition clause %q: expected `variable === literal`", strings.TrimSpace(part))
		}
		v := strings.TrimSpace(fields[0])
		lit := strings.TrimSpace(fields[1])
		if v == "" || lit == "" {
			return nil, configErr("", "condition clause %q: empty variable or literal", strings.TrimSpace(part))
		}
		if strings.ContainsAny(v, "<>=!()") || strings.ContainsAny(lit, "<>=!()") {
			return nil, configErr("", "condition clause %q: unsupported operator", strings.TrimSpace(part))
		}
		cond = append(cond, Clause{Var: v, Literal: lit})
	}
	return cond, nil
}

// Matches evaluates the condition against an assignment. String comparison
// is case-insensitive; when both sides parse as numbers they compare
// numerically, so "07" matches a sampled 7.
func (c Condition) Matches(a Assignment) bool {
	for _, cl := range c {
		v, ok := a[cl.Var]
		if !ok {
			return false
		}
		if !looseEqual(v, cl.Literal) {
			return false
		}
	}
	return true
}

func looseEqual(v Value, literal string) bool {
	if lv, err := strconv.ParseFloat(strings.TrimSpace(literal), 64); err == nil {
		if v.IsInt {
			return float64(v.Int) == lv
		}
		if sv, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
			return sv == lv
		}
	}
	return strings.EqualFold(strings.TrimSpace(v.String()), strings.TrimSpace(literal))
}
