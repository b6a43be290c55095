package question

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/examforge/examforge/internal/expr"
)

// Materializer resolves stored question definitions into concrete
// instances. It is stateless apart from its random source; calls are
// independent and a seeded source makes them reproducible.
type Materializer struct {
	rng *rand.Rand
}

// NewMaterializer builds a materializer around rng. A nil rng gets a
// time-seeded source.
func NewMaterializer(rng *rand.Rand) *Materializer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Materializer{rng: rng}
}

// Materialize samples a fresh assignment for def and resolves it into one
// instance. Static questions skip sampling entirely.
func (m *Materializer) Materialize(def *Definition) (*Instance, error) {
	switch def.Kind {
	case KindStatic:
		return m.materializeStatic(def)
	case KindDynamic:
		return m.materializeDynamic(def)
	case KindDynamicConditional:
		return m.materializeConditional(def, true)
	case KindDynamicTextCond:
		return m.materializeConditional(def, false)
	default:
		return nil, configErr(def.ID, "unknown question kind %q", def.Kind)
	}
}

// materializeStatic passes the stored text and options through unchanged,
// only shuffling option order.
func (m *Materializer) materializeStatic(def *Definition) (*Instance, error) {
	if len(def.Static) == 0 {
		return nil, configErr(def.ID, "static question has no options")
	}
	correct := 0
	opts := make([]GeneratedOption, 0, len(def.Static))
	for _, so := range def.Static {
		if so.IsCorrect {
			correct++
		}
		opts = append(opts, GeneratedOption{ID: uuid.NewString(), Text: so.Text, IsCorrect: so.IsCorrect})
	}
	if correct != 1 {
		return nil, configErr(def.ID, "static question has %d correct options, want 1", correct)
	}
	shuffleOptions(opts, m.rng)
	return &Instance{Text: def.Text, Options: opts}, nil
}

func (m *Materializer) materializeDynamic(def *Definition) (*Instance, error) {
	assignment, err := Sample(def.Vars, m.rng)
	if err != nil {
		return nil, attach(err, def.ID)
	}

	inst := &Instance{Assignment: assignment}
	inst.Text = m.substituteText(def.Template, assignment, inst)

	// Evaluate every authored rule. A failing wrong-option formula drops
	// that option and is reported; the correct slot is reconciled against
	// the authoritative formula below.
	var opts []GeneratedOption
	correctPresent := false
	evalRule := func(tag string, rule OptionRule) {
		v, err := m.evalNumericRule(rule, assignment)
		if err != nil {
			inst.Warnings = append(inst.Warnings, (&EvalError{Rule: tag, Err: err}).Error())
			return
		}
		o := GeneratedOption{ID: uuid.NewString(), Text: renderNumeric(v, rule.Unit), IsCorrect: tag == "correct"}
		if o.IsCorrect {
			correctPresent = true
		}
		opts = append(opts, o)
	}
	evalRule("correct", def.Rules.Correct)
	for i, w := range def.Rules.Wrong {
		evalRule(fmt.Sprintf("wrong%d", i+1), w)
	}

	// The correct-answer formula is authoritative: it overwrites a
	// disagreeing correct option and replaces a dropped one. If the formula
	// itself fails there is no trustworthy answer and the instance fails.
	formula := def.CorrectFormula
	if formula == "" {
		formula = def.Rules.Correct.Expr
	}
	correctValue, err := m.evalNumeric(formula, assignment)
	if err != nil {
		return nil, &EvalError{Rule: "correct", Err: err}
	}
	authoritative := renderNumeric(correctValue, def.Rules.Correct.Unit)
	if correctPresent {
		for i := range opts {
			if opts[i].IsCorrect && opts[i].Text != authoritative {
				opts[i].Text = authoritative
			}
		}
	} else {
		opts = append(opts, GeneratedOption{ID: uuid.NewString(), Text: authoritative, IsCorrect: true})
	}

	normalized, err := normalizeOptions(opts, correctValue, def.Rules.Correct.Unit, m.rng)
	if err != nil {
		return nil, err
	}
	inst.Options = normalized
	return inst, m.checkSingleCorrect(def, inst)
}

// materializeConditional handles both conditional kinds: numeric sets are
// evaluated like dynamic options, text sets are substituted verbatim. The
// matched rule set is used as authored, without dedup or padding.
func (m *Materializer) materializeConditional(def *Definition, numeric bool) (*Instance, error) {
	assignment, err := Sample(def.Vars, m.rng)
	if err != nil {
		return nil, attach(err, def.ID)
	}

	inst := &Instance{Assignment: assignment}
	inst.Text = m.substituteText(def.Template, assignment, inst)

	set, ok := m.matchRuleSet(def.Conditional, assignment)
	if !ok {
		return nil, fmt.Errorf("question %s: %w", def.ID, ErrNoMatchingCondition)
	}

	var opts []GeneratedOption
	addNumeric := func(tag string, rule OptionRule) error {
		v, err := m.evalNumericRule(rule, assignment)
		if err != nil {
			if tag == "correct" {
				return &EvalError{Rule: tag, Err: err}
			}
			inst.Warnings = append(inst.Warnings, (&EvalError{Rule: tag, Err: err}).Error())
			return nil
		}
		opts = append(opts, GeneratedOption{ID: uuid.NewString(), Text: renderNumeric(v, rule.Unit), IsCorrect: tag == "correct"})
		return nil
	}
	addText := func(tag string, rule OptionRule) {
		text := m.substituteText(rule.Text, assignment, inst)
		opts = append(opts, GeneratedOption{ID: uuid.NewString(), Text: text, IsCorrect: tag == "correct"})
	}

	if numeric {
		if err := addNumeric("correct", set.Correct); err != nil {
			return nil, err
		}
		for i, w := range set.Wrong {
			if err := addNumeric(fmt.Sprintf("wrong%d", i+1), w); err != nil {
				return nil, err
			}
		}
	} else {
		addText("correct", set.Correct)
		for i, w := range set.Wrong {
			addText(fmt.Sprintf("wrong%d", i+1), w)
		}
	}

	shuffleOptions(opts, m.rng)
	inst.Options = opts
	return inst, m.checkSingleCorrect(def, inst)
}

// matchRuleSet walks conditions in declaration order and returns the first
// matching set. Later matches are deliberately ignored.
func (m *Materializer) matchRuleSet(rules []ConditionalRule, a Assignment) (RuleSet, bool) {
	for _, cr := range rules {
		if cr.Condition.Matches(a) {
			return cr.Set, true
		}
	}
	return RuleSet{}, false
}

func (m *Materializer) substituteText(s string, a Assignment, inst *Instance) string {
	out, unresolved := Substitute(s, a)
	for _, name := range unresolved {
		inst.Warnings = append(inst.Warnings, "unresolved placeholder {"+name+"}")
	}
	return out
}

func (m *Materializer) evalNumericRule(rule OptionRule, a Assignment) (float64, error) {
	if !rule.Numeric {
		return 0, fmt.Errorf("text rule where a formula was expected")
	}
	return m.evalNumeric(rule.Expr, a)
}

// evalNumeric substitutes the assignment into an arithmetic formula and
// evaluates it. An unresolved placeholder survives substitution and is then
// rejected by the evaluator, so it fails the option rather than defaulting
// to zero.
func (m *Materializer) evalNumeric(formula string, a Assignment) (float64, error) {
	substituted, _ := Substitute(formula, a)
	return expr.Eval(substituted)
}

func (m *Materializer) checkSingleCorrect(def *Definition, inst *Instance) error {
	n := 0
	for _, o := range inst.Options {
		if o.IsCorrect {
			n++
		}
	}
	if n != 1 {
		return configErr(def.ID, "generated instance has %d correct options, want 1", n)
	}
	return nil
}

// attach stamps a question id onto config errors raised by spec validation,
// which runs without knowing which question it serves.
func attach(err error, id string) error {
	if ce, ok := err.(*ConfigError); ok && ce.QuestionID == "" {
		ce.QuestionID = id
		return ce
	}
	return err
}
