package question

import (
	"errors"
	"fmt"
)

// The materializer never papers over a failed generation with plausible
// data: every error below is returned to the caller, which decides whether
// to resample, skip the question, or surface the failure.

// ConfigError marks a malformed stored question (bad variable spec, bad rule
// JSON, empty enum, min>max). The question cannot produce instances until an
// administrator fixes it.
type ConfigError struct {
	QuestionID string
	Msg        string
}

func (e *ConfigError) Error() string {
	if e.QuestionID == "" {
		return "question config: " + e.Msg
	}
	return fmt.Sprintf("question %s config: %s", e.QuestionID, e.Msg)
}

// EvalError marks a failed option-formula evaluation. When the failing
// formula is the authoritative correct-answer formula the whole
// materialization fails; otherwise only the affected option is dropped.
type EvalError struct {
	Rule string // "correct", "wrong1", ...
	Err  error
}

func (e *EvalError) Error() string { return fmt.Sprintf("option rule %s: %v", e.Rule, e.Err) }
func (e *EvalError) Unwrap() error { return e.Err }

// ErrNoMatchingCondition is returned when a conditional rule set has no
// condition matching the sampled assignment. A default rule set is never
// guessed.
var ErrNoMatchingCondition = errors.New("no condition matches sampled assignment")

// ErrSynthesisExhausted is returned when the perturbation retry budget runs
// out while padding an option set to four unique entries.
var ErrSynthesisExhausted = errors.New("option synthesis retry budget exhausted")

func configErr(id, format string, args ...any) *ConfigError {
	return &ConfigError{QuestionID: id, Msg: fmt.Sprintf(format, args...)}
}
