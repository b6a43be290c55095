package question

import "strconv"

// Kind selects the generation strategy for a stored question. It is declared
// once at creation time and never changes afterwards.
type Kind string

const (
	KindStatic             Kind = "static"
	KindDynamic            Kind = "dynamic"
	KindDynamicConditional Kind = "dynamic conditional"
	KindDynamicTextCond    Kind = "dynamic text conditional"
)

// ValidKind reports whether s names one of the four question kinds.
func ValidKind(s string) bool {
	switch Kind(s) {
	case KindStatic, KindDynamic, KindDynamicConditional, KindDynamicTextCond:
		return true
	}
	return false
}

// RangeSpec samples an integer uniformly from [Min, Max] inclusive.
type RangeSpec struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// EnumSpec samples one value uniformly from Values.
type EnumSpec struct {
	Values []string `json:"values"`
}

// VariableSpec is a question's full variable specification: a range group
// and an enum group. Either may be empty; names must be unique across both.
type VariableSpec struct {
	Ranges map[string]RangeSpec
	Enums  map[string]EnumSpec
}

// Empty reports whether no variables are declared at all.
func (s VariableSpec) Empty() bool { return len(s.Ranges) == 0 && len(s.Enums) == 0 }

// Value is one sampled scalar: an integer drawn from a range spec or a
// string drawn from an enum spec.
type Value struct {
	Int   int64
	Str   string
	IsInt bool
}

func IntValue(n int64) Value  { return Value{Int: n, IsInt: true} }
func StrValue(s string) Value { return Value{Str: s} }

func (v Value) String() string {
	if v.IsInt {
		return strconv.FormatInt(v.Int, 10)
	}
	return v.Str
}

// Assignment maps variable name to one sampled value. It is produced once
// per generated question instance.
type Assignment map[string]Value

// OptionRule describes how one answer option is derived from an assignment.
// Numeric rules carry an arithmetic formula plus an optional unit suffix;
// text rules carry a literal used verbatim after placeholder substitution.
type OptionRule struct {
	Numeric bool
	Expr    string // numeric mode
	Unit    string // numeric mode, optional
	Text    string // text mode
}

// RuleSet is one authored option set: the rule tagged correct plus the
// wrong1..wrongN rules in tag order.
type RuleSet struct {
	Correct OptionRule
	Wrong   []OptionRule
}

// ConditionalRule binds a parsed condition to the option set that applies
// when it matches. Rules are kept in declaration order; the first match wins.
type ConditionalRule struct {
	Raw       string
	Condition Condition
	Set       RuleSet
}

// StaticOption is a stored option of a static question.
type StaticOption struct {
	Text      string `json:"option_text"`
	IsCorrect bool   `json:"is_correct"`
	Number    int    `json:"option_number,omitempty"`
}

// Definition is a stored question parsed into its kind-specific shape.
// Exactly one of the kind-specific field groups is populated.
type Definition struct {
	ID        string
	BankID    string
	Kind      Kind
	Text      string // static question text; falls back to template for dynamic kinds
	Template  string
	NoOfTimes int // how many instances an attempt materializes (dynamic kinds)

	Vars VariableSpec

	// dynamic
	Rules          RuleSet
	CorrectFormula string // authoritative correct-answer formula; defaults to Rules.Correct.Expr

	// dynamic conditional / dynamic text conditional
	Conditional []ConditionalRule

	// static
	Static []StaticOption
}

// GeneratedOption is one concrete answer choice of a generated instance.
type GeneratedOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Instance is one concrete, ready-to-render question: resolved text and a
// finalized, shuffled option set with exactly one correct option. Instances
// are created fresh every time a question is presented and are never reused.
type Instance struct {
	Text       string            `json:"text"`
	Options    []GeneratedOption `json:"options"`
	Assignment Assignment        `json:"-"`

	// Warnings carries non-fatal anomalies (unresolved placeholders,
	// dropped options) for the caller's diagnostics.
	Warnings []string `json:"-"`
}

// CorrectOption returns the single option flagged correct.
func (in *Instance) CorrectOption() (GeneratedOption, bool) {
	for _, o := range in.Options {
		if o.IsCorrect {
			return o, true
		}
	}
	return GeneratedOption{}, false
}
