package question

import "regexp"

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Substitute replaces every {name} placeholder in s with the assignment's
// value for name. Placeholders naming an unassigned variable are left
// literally in place and reported back so the caller can log the anomaly.
func Substitute(s string, a Assignment) (string, []string) {
	var unresolved []string
	out := placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := a[name]
		if !ok {
			unresolved = append(unresolved, name)
			return m
		}
		return v.String()
	})
	return out, unresolved
}
