package question

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Record is the raw stored shape of a question, as read from the questions
// table. Variable ranges and option rules are kind-dependent JSON documents;
// Parse validates them at this boundary into a typed Definition so the
// materializer never probes ad hoc shapes.
type Record struct {
	ID             string          `json:"id"`
	BankID         string          `json:"question_bank_id"`
	Type           string          `json:"question_type"`
	QuestionText   string          `json:"question_text"`
	Template       string          `json:"template"`
	VariableRanges json.RawMessage `json:"variable_ranges,omitempty"`
	OptionRules    json.RawMessage `json:"option_generation_rules,omitempty"`
	CorrectFormula string          `json:"correct_answer_equation,omitempty"`
	OptionsJSON    json.RawMessage `json:"options,omitempty"`
	NoOfTimes      int             `json:"no_of_times"`
}

// Parse validates a stored question record into its kind's Definition.
func Parse(rec Record) (*Definition, error) {
	def := &Definition{
		ID:             rec.ID,
		BankID:         rec.BankID,
		Kind:           Kind(rec.Type),
		Text:           rec.QuestionText,
		Template:       rec.Template,
		CorrectFormula: rec.CorrectFormula,
		NoOfTimes:      rec.NoOfTimes,
	}
	if def.NoOfTimes < 1 {
		def.NoOfTimes = 1
	}
	if def.Text == "" {
		def.Text = rec.Template
	}

	switch def.Kind {
	case KindStatic:
		return parseStatic(rec, def)
	case KindDynamic:
		return parseDynamic(rec, def)
	case KindDynamicConditional:
		return parseConditional(rec, def, true)
	case KindDynamicTextCond:
		return parseConditional(rec, def, false)
	default:
		return nil, configErr(rec.ID, "unknown question type %q", rec.Type)
	}
}

func parseStatic(rec Record, def *Definition) (*Definition, error) {
	if len(rec.OptionsJSON) == 0 {
		return nil, configErr(rec.ID, "static question missing options")
	}
	if err := json.Unmarshal(rec.OptionsJSON, &def.Static); err != nil {
		return nil, configErr(rec.ID, "bad static options: %v", err)
	}
	if len(def.Static) < 2 {
		return nil, configErr(rec.ID, "static question needs at least 2 options")
	}
	correct := 0
	for _, o := range def.Static {
		if o.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return nil, configErr(rec.ID, "static question has %d correct options, want 1", correct)
	}
	return def, nil
}

func parseDynamic(rec Record, def *Definition) (*Definition, error) {
	if def.Template == "" {
		return nil, configErr(rec.ID, "dynamic question missing template")
	}
	vars, err := parseVariableRanges(rec.ID, rec.VariableRanges)
	if err != nil {
		return nil, err
	}
	if len(vars.Ranges) == 0 {
		return nil, configErr(rec.ID, "dynamic question declares no range variables")
	}
	def.Vars = vars

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.OptionRules, &raw); err != nil {
		return nil, configErr(rec.ID, "bad option rules: %v", err)
	}
	set, err := parseNumericRuleSet(rec.ID, raw)
	if err != nil {
		return nil, err
	}
	def.Rules = set
	return def, nil
}

func parseConditional(rec Record, def *Definition, numeric bool) (*Definition, error) {
	if def.Template == "" {
		return nil, configErr(rec.ID, "conditional question missing template")
	}
	vars, err := parseVariableRanges(rec.ID, rec.VariableRanges)
	if err != nil {
		return nil, err
	}
	if len(vars.Enums) == 0 {
		return nil, configErr(rec.ID, "conditional question declares no enum variables")
	}
	if numeric && len(vars.Ranges) == 0 {
		return nil, configErr(rec.ID, "dynamic conditional question declares no range variables")
	}
	def.Vars = vars

	// Conditions are tried in declaration order, so the JSON object's key
	// order must survive decoding; a plain map would scramble it.
	entries, err := orderedObject(rec.OptionRules)
	if err != nil {
		return nil, configErr(rec.ID, "bad option rules: %v", err)
	}
	if len(entries) == 0 {
		return nil, configErr(rec.ID, "conditional question has no rule sets")
	}
	for _, ent := range entries {
		cond, err := ParseCondition(ent.key)
		if err != nil {
			return nil, attach(err, rec.ID)
		}
		var set RuleSet
		if numeric {
			// Authored as a one-element array of option sets per condition.
			var sets []map[string]json.RawMessage
			if err := json.Unmarshal(ent.value, &sets); err != nil {
				// Tolerate a bare object as well.
				var one map[string]json.RawMessage
				if err2 := json.Unmarshal(ent.value, &one); err2 != nil {
					return nil, configErr(rec.ID, "condition %q: expected option set: %v", ent.key, err)
				}
				sets = []map[string]json.RawMessage{one}
			}
			if len(sets) == 0 {
				return nil, configErr(rec.ID, "condition %q: empty option set list", ent.key)
			}
			set, err = parseNumericRuleSet(rec.ID, sets[0])
			if err != nil {
				return nil, err
			}
		} else {
			var texts map[string]string
			if err := json.Unmarshal(ent.value, &texts); err != nil {
				return nil, configErr(rec.ID, "condition %q: expected string options: %v", ent.key, err)
			}
			set, err = parseTextRuleSet(rec.ID, ent.key, texts)
			if err != nil {
				return nil, err
			}
		}
		def.Conditional = append(def.Conditional, ConditionalRule{Raw: ent.key, Condition: cond, Set: set})
	}
	return def, nil
}

// parseVariableRanges accepts the shapes the question bank has accumulated:
// grouped {"range_values": {...}, "enum_values": {...}} (also "enums"), flat
// {"name": {"min":..,"max":..}}, and flat {"name": {"values": [...]}}.
func parseVariableRanges(id string, raw json.RawMessage) (VariableSpec, error) {
	spec := VariableSpec{Ranges: map[string]RangeSpec{}, Enums: map[string]EnumSpec{}}
	if len(raw) == 0 {
		return spec, configErr(id, "missing variable ranges")
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return spec, configErr(id, "bad variable ranges: %v", err)
	}

	grouped := false
	if rv, ok := top["range_values"]; ok {
		grouped = true
		if err := parseRangeGroup(id, rv, spec.Ranges); err != nil {
			return spec, err
		}
	}
	for _, key := range []string{"enum_values", "enums"} {
		if ev, ok := top[key]; ok {
			grouped = true
			if err := parseEnumGroup(id, ev, spec.Enums); err != nil {
				return spec, err
			}
		}
	}
	if grouped {
		return spec, nil
	}

	for name, v := range top {
		var entry struct {
			Min    *int64   `json:"min"`
			Max    *int64   `json:"max"`
			Values []string `json:"values"`
		}
		if err := json.Unmarshal(v, &entry); err != nil {
			return spec, configErr(id, "variable %s: %v", name, err)
		}
		switch {
		case entry.Min != nil && entry.Max != nil:
			spec.Ranges[name] = RangeSpec{Min: *entry.Min, Max: *entry.Max}
		case len(entry.Values) > 0:
			spec.Enums[name] = EnumSpec{Values: entry.Values}
		default:
			return spec, configErr(id, "variable %s: need min/max or values", name)
		}
	}
	return spec, nil
}

func parseRangeGroup(id string, raw json.RawMessage, out map[string]RangeSpec) error {
	var group map[string]struct {
		Min *int64 `json:"min"`
		Max *int64 `json:"max"`
	}
	if err := json.Unmarshal(raw, &group); err != nil {
		return configErr(id, "bad range_values: %v", err)
	}
	for name, r := range group {
		if r.Min == nil || r.Max == nil {
			return configErr(id, "range %s: min and max required", name)
		}
		out[name] = RangeSpec{Min: *r.Min, Max: *r.Max}
	}
	return nil
}

func parseEnumGroup(id string, raw json.RawMessage, out map[string]EnumSpec) error {
	var group map[string][]string
	if err := json.Unmarshal(raw, &group); err != nil {
		return configErr(id, "bad enum_values: %v", err)
	}
	for name, vals := range group {
		out[name] = EnumSpec{Values: vals}
	}
	return nil
}

// parseNumericRuleSet reads a {correct, wrong1..wrongN} object whose values
// are either [formula, unit] pairs or bare formula strings.
func parseNumericRuleSet(id string, raw map[string]json.RawMessage) (RuleSet, error) {
	var set RuleSet
	correctRaw, ok := raw["correct"]
	if !ok {
		return set, configErr(id, "option rules missing correct entry")
	}
	correct, err := parseNumericRule(id, "correct", correctRaw)
	if err != nil {
		return set, err
	}
	set.Correct = correct

	var wrongKeys []string
	for k := range raw {
		if strings.HasPrefix(k, "wrong") {
			wrongKeys = append(wrongKeys, k)
		} else if k != "correct" {
			return set, configErr(id, "option rules: unexpected key %q", k)
		}
	}
	sortWrongKeys(wrongKeys)
	if len(wrongKeys) == 0 {
		return set, configErr(id, "option rules need at least one wrong entry")
	}
	for _, k := range wrongKeys {
		rule, err := parseNumericRule(id, k, raw[k])
		if err != nil {
			return set, err
		}
		set.Wrong = append(set.Wrong, rule)
	}
	return set, nil
}

func parseNumericRule(id, tag string, raw json.RawMessage) (OptionRule, error) {
	var pair []string
	if err := json.Unmarshal(raw, &pair); err == nil {
		if len(pair) != 2 {
			return OptionRule{}, configErr(id, "rule %s: expected [formula, unit] pair", tag)
		}
		if strings.TrimSpace(pair[0]) == "" {
			return OptionRule{}, configErr(id, "rule %s: empty formula", tag)
		}
		return OptionRule{Numeric: true, Expr: pair[0], Unit: strings.TrimSpace(pair[1])}, nil
	}
	var formula string
	if err := json.Unmarshal(raw, &formula); err == nil {
		if strings.TrimSpace(formula) == "" {
			return OptionRule{}, configErr(id, "rule %s: empty formula", tag)
		}
		return OptionRule{Numeric: true, Expr: formula}, nil
	}
	return OptionRule{}, configErr(id, "rule %s: expected [formula, unit] pair or formula string", tag)
}

func parseTextRuleSet(id, cond string, texts map[string]string) (RuleSet, error) {
	var set RuleSet
	correct, ok := texts["correct"]
	if !ok || strings.TrimSpace(correct) == "" {
		return set, configErr(id, "condition %q: missing correct option text", cond)
	}
	set.Correct = OptionRule{Text: correct}

	var wrongKeys []string
	for k := range texts {
		if strings.HasPrefix(k, "wrong") {
			wrongKeys = append(wrongKeys, k)
		} else if k != "correct" {
			return set, configErr(id, "condition %q: unexpected key %q", cond, k)
		}
	}
	sortWrongKeys(wrongKeys)
	if len(wrongKeys) == 0 {
		return set, configErr(id, "condition %q: needs at least one wrong option", cond)
	}
	// Text sets are served verbatim, so a duplicate authored here would
	// reach the taker. Numeric sets dedup after evaluation instead.
	seen := map[string]string{set.Correct.Text: "correct"}
	for _, k := range wrongKeys {
		txt := texts[k]
		if prev, dup := seen[txt]; dup {
			return set, configErr(id, "condition %q: %s repeats the text of %s", cond, k, prev)
		}
		seen[txt] = k
		set.Wrong = append(set.Wrong, OptionRule{Text: txt})
	}
	return set, nil
}

// sortWrongKeys orders wrong1..wrongN by numeric suffix so wrong10 does not
// land before wrong2.
func sortWrongKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		ni, erri := strconv.Atoi(strings.TrimPrefix(keys[i], "wrong"))
		nj, errj := strconv.Atoi(strings.TrimPrefix(keys[j], "wrong"))
		if erri == nil && errj == nil {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
}

type objectEntry struct {
	key   string
	value json.RawMessage
}

// orderedObject decodes a JSON object preserving key declaration order,
// which encoding/json maps discard.
func orderedObject(raw json.RawMessage) ([]objectEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}
	var entries []objectEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
		entries = append(entries, objectEntry{key: key, value: val})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}
