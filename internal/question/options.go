package question

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/google/uuid"
)

const (
	// optionCount is the fixed size of a normalized option set.
	optionCount = 4
	// synthesisBudget bounds the perturb-and-retry loop that pads a short
	// option set. Exhausting it fails the materialization instead of
	// spinning forever on a saturated neighborhood.
	synthesisBudget = 64
)

// formatNumber renders an evaluated option value: integers without a
// decimal point, everything else fixed to two decimals.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// renderNumeric appends the unit suffix, when present, to a rendered value.
func renderNumeric(v float64, unit string) string {
	if unit == "" {
		return formatNumber(v)
	}
	return formatNumber(v) + " " + unit
}

// normalizeOptions turns a candidate option list into exactly four unique
// options containing the single correct one, shuffled.
//
// Duplicates collapse by rendered text, first occurrence winning. Short sets
// are padded with wrong options synthesized as numeric neighbors of the
// correct value (signed offset, magnitude 1..10, same unit suffix). Long
// sets keep the correct option plus a random three of the wrong ones.
func normalizeOptions(opts []GeneratedOption, correctValue float64, unit string, rng *rand.Rand) ([]GeneratedOption, error) {
	seen := make(map[string]struct{}, len(opts))
	unique := make([]GeneratedOption, 0, len(opts))
	for _, o := range opts {
		if _, dup := seen[o.Text]; dup {
			continue
		}
		seen[o.Text] = struct{}{}
		unique = append(unique, o)
	}

	for attempt := 0; len(unique) < optionCount; attempt++ {
		if attempt >= synthesisBudget {
			return nil, ErrSynthesisExhausted
		}
		offset := float64(1 + rng.Intn(10))
		if rng.Intn(2) == 0 {
			offset = -offset
		}
		text := renderNumeric(correctValue+offset, unit)
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		unique = append(unique, GeneratedOption{ID: uuid.NewString(), Text: text})
	}

	if len(unique) > optionCount {
		var correct GeneratedOption
		wrong := make([]GeneratedOption, 0, len(unique)-1)
		for _, o := range unique {
			if o.IsCorrect {
				correct = o
			} else {
				wrong = append(wrong, o)
			}
		}
		picked := make([]GeneratedOption, 0, optionCount)
		picked = append(picked, correct)
		for _, i := range rng.Perm(len(wrong))[:optionCount-1] {
			picked = append(picked, wrong[i])
		}
		unique = picked
	}

	shuffleOptions(unique, rng)
	return unique, nil
}

// shuffleOptions applies a uniform Fisher-Yates shuffle so the correct
// option's position carries no signal.
func shuffleOptions(opts []GeneratedOption, rng *rand.Rand) {
	rng.Shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})
}
