package question

import (
	"math/rand"
	"sort"
)

// Sample draws one concrete assignment from a variable specification.
// Each call is independent; callers inject the random source so tests can
// pin a seed.
func Sample(spec VariableSpec, rng *rand.Rand) (Assignment, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	a := make(Assignment, len(spec.Ranges)+len(spec.Enums))
	// Iterate names in sorted order so a fixed seed yields a fixed assignment.
	for _, name := range sortedRangeNames(spec.Ranges) {
		r := spec.Ranges[name]
		a[name] = IntValue(r.Min + rng.Int63n(r.Max-r.Min+1))
	}
	for _, name := range sortedEnumNames(spec.Enums) {
		e := spec.Enums[name]
		a[name] = StrValue(e.Values[rng.Intn(len(e.Values))])
	}
	return a, nil
}

func validateSpec(spec VariableSpec) error {
	for name, r := range spec.Ranges {
		if name == "" {
			return configErr("", "range variable with empty name")
		}
		if r.Min > r.Max {
			return configErr("", "range %s: min %d > max %d", name, r.Min, r.Max)
		}
	}
	for name, e := range spec.Enums {
		if name == "" {
			return configErr("", "enum variable with empty name")
		}
		if len(e.Values) == 0 {
			return configErr("", "enum %s has no values", name)
		}
		if _, dup := spec.Ranges[name]; dup {
			return configErr("", "variable %s declared in both range and enum groups", name)
		}
	}
	return nil
}

func sortedRangeNames(m map[string]RangeSpec) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedEnumNames(m map[string]EnumSpec) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
