package question

import (
	"math/rand"
	"testing"
)

func newRng(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

func TestSampleRangeBoundsInclusive(t *testing.T) {
	spec := VariableSpec{Ranges: map[string]RangeSpec{"x": {Min: 1, Max: 3}}}
	rng := newRng(1)
	seen := map[int64]bool{}
	for i := 0; i < 200; i++ {
		a, err := Sample(spec, rng)
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		v := a["x"]
		if !v.IsInt {
			t.Fatalf("range variable sampled as non-int: %+v", v)
		}
		if v.Int < 1 || v.Int > 3 {
			t.Fatalf("sampled %d outside [1,3]", v.Int)
		}
		seen[v.Int] = true
	}
	for want := int64(1); want <= 3; want++ {
		if !seen[want] {
			t.Errorf("value %d never sampled in 200 draws", want)
		}
	}
}

func TestSampleSinglePointRange(t *testing.T) {
	spec := VariableSpec{Ranges: map[string]RangeSpec{"x": {Min: 7, Max: 7}}}
	a, err := Sample(spec, newRng(1))
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if a["x"].Int != 7 {
		t.Fatalf("got %d, want 7", a["x"].Int)
	}
}

func TestSampleEnumMembership(t *testing.T) {
	spec := VariableSpec{Enums: map[string]EnumSpec{"dir": {Values: []string{"N", "S", "E", "W"}}}}
	rng := newRng(2)
	valid := map[string]bool{"N": true, "S": true, "E": true, "W": true}
	for i := 0; i < 100; i++ {
		a, err := Sample(spec, rng)
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		if !valid[a["dir"].Str] {
			t.Fatalf("sampled %q not in enum", a["dir"].Str)
		}
	}
}

func TestSampleDeterministicWithSeed(t *testing.T) {
	spec := VariableSpec{
		Ranges: map[string]RangeSpec{"a": {Min: 0, Max: 100}, "b": {Min: -5, Max: 5}},
		Enums:  map[string]EnumSpec{"c": {Values: []string{"x", "y", "z"}}},
	}
	a1, err := Sample(spec, newRng(42))
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	a2, err := Sample(spec, newRng(42))
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	for k, v := range a1 {
		if a2[k] != v {
			t.Errorf("variable %s: %v vs %v with same seed", k, v, a2[k])
		}
	}
}

func TestSampleInvalidSpecs(t *testing.T) {
	cases := []struct {
		name string
		spec VariableSpec
	}{
		{"min above max", VariableSpec{Ranges: map[string]RangeSpec{"x": {Min: 5, Max: 1}}}},
		{"empty enum", VariableSpec{Enums: map[string]EnumSpec{"d": {}}}},
		{"name in both groups", VariableSpec{
			Ranges: map[string]RangeSpec{"x": {Min: 1, Max: 2}},
			Enums:  map[string]EnumSpec{"x": {Values: []string{"a"}}},
		}},
		{"empty range name", VariableSpec{Ranges: map[string]RangeSpec{"": {Min: 1, Max: 2}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Sample(tc.spec, newRng(1)); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}
