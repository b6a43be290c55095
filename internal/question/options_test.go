package question

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func TestFormatNumber(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{3, "3"},
		{-2, "-2"},
		{0, "0"},
		{2.5, "2.50"},
		{1.0 / 3.0, "0.33"},
	}
	for _, tc := range cases {
		if got := formatNumber(tc.in); got != tc.want {
			t.Errorf("formatNumber(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRenderNumericUnit(t *testing.T) {
	if got := renderNumeric(3, "units"); got != "3 units" {
		t.Fatalf("got %q", got)
	}
	if got := renderNumeric(3, ""); got != "3" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeOptionsDedupFirstWins(t *testing.T) {
	opts := []GeneratedOption{
		{ID: "a", Text: "3", IsCorrect: true},
		{ID: "b", Text: "3"},
		{ID: "c", Text: "4"},
		{ID: "d", Text: "5"},
		{ID: "e", Text: "6"},
	}
	out, err := normalizeOptions(opts, 3, "", newRng(1))
	if err != nil {
		t.Fatalf("normalizeOptions: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("got %d options, want 4", len(out))
	}
	seen := map[string]bool{}
	for _, o := range out {
		if seen[o.Text] {
			t.Fatalf("duplicate text %q survived", o.Text)
		}
		seen[o.Text] = true
	}
	// The duplicate "3" that collapsed must be the correct one (first wins).
	correct := 0
	for _, o := range out {
		if o.IsCorrect {
			correct++
			if o.Text != "3" {
				t.Fatalf("correct option text = %q, want 3", o.Text)
			}
		}
	}
	if correct != 1 {
		t.Fatalf("%d correct options, want 1", correct)
	}
}

func TestNormalizeOptionsPadsShortSet(t *testing.T) {
	opts := []GeneratedOption{
		{ID: "a", Text: "3 units", IsCorrect: true},
		{ID: "b", Text: "5 units"},
	}
	out, err := normalizeOptions(opts, 3, "units", newRng(7))
	if err != nil {
		t.Fatalf("normalizeOptions: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("got %d options, want 4", len(out))
	}
	seen := map[string]bool{}
	for _, o := range out {
		if seen[o.Text] {
			t.Fatalf("duplicate text %q", o.Text)
		}
		seen[o.Text] = true
		if !strings.HasSuffix(o.Text, " units") {
			t.Fatalf("padded option %q lost the unit suffix", o.Text)
		}
		if o.Text == "3 units" != o.IsCorrect {
			t.Fatalf("correctness flag out of place on %q", o.Text)
		}
	}
}

// stuckSource always yields the same value, so every synthesized
// neighbor collides with the previous one and padding can never finish.
type stuckSource struct{}

func (stuckSource) Int63() int64 { return 42 << 32 }
func (stuckSource) Seed(int64)   {}

func TestNormalizeOptionsPaddingIsBounded(t *testing.T) {
	opts := []GeneratedOption{{ID: "a", Text: "3", IsCorrect: true}}
	_, err := normalizeOptions(opts, 3, "", rand.New(stuckSource{}))
	if !errors.Is(err, ErrSynthesisExhausted) {
		t.Fatalf("err = %v, want ErrSynthesisExhausted", err)
	}
}

func TestNormalizeOptionsTrimsLongSet(t *testing.T) {
	opts := []GeneratedOption{
		{ID: "a", Text: "1"},
		{ID: "b", Text: "2"},
		{ID: "c", Text: "3", IsCorrect: true},
		{ID: "d", Text: "4"},
		{ID: "e", Text: "5"},
		{ID: "f", Text: "6"},
	}
	out, err := normalizeOptions(opts, 3, "", newRng(3))
	if err != nil {
		t.Fatalf("normalizeOptions: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("got %d options, want 4", len(out))
	}
	found := false
	for _, o := range out {
		if o.IsCorrect {
			found = true
			if o.Text != "3" {
				t.Fatalf("correct option text = %q", o.Text)
			}
		}
	}
	if !found {
		t.Fatal("trimming dropped the correct option")
	}
}

func TestShuffleOptionsKeepsSet(t *testing.T) {
	opts := []GeneratedOption{
		{ID: "a", Text: "1"}, {ID: "b", Text: "2"}, {ID: "c", Text: "3"}, {ID: "d", Text: "4"},
	}
	shuffleOptions(opts, newRng(9))
	if len(opts) != 4 {
		t.Fatalf("shuffle changed length to %d", len(opts))
	}
	seen := map[string]bool{}
	for _, o := range opts {
		seen[o.ID] = true
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		if !seen[id] {
			t.Fatalf("option %s lost in shuffle", id)
		}
	}
}
