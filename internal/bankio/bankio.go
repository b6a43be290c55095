// Package bankio moves question banks in and out of the store as YAML
// documents. JSON works too, since YAML is a superset. Decoding is
// strict: unknown fields fail the import instead of being dropped.
package bankio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/examforge/examforge/internal/question"
)

// File is the on-disk shape of an exported bank.
type File struct {
	Bank      BankDoc       `yaml:"bank" json:"bank"`
	Questions []QuestionDoc `yaml:"questions" json:"questions"`
}

type BankDoc struct {
	ID          string `yaml:"id,omitempty" json:"id,omitempty"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// QuestionDoc mirrors the stored question record. Structured fields are
// kept as yaml.Node so mapping order survives the round trip; conditional
// rule sets match in declaration order, so reordering them would change
// behavior.
type QuestionDoc struct {
	ID             string     `yaml:"id,omitempty" json:"id,omitempty"`
	Type           string     `yaml:"question_type" json:"question_type"`
	QuestionText   string     `yaml:"question_text,omitempty" json:"question_text,omitempty"`
	Template       string     `yaml:"template,omitempty" json:"template,omitempty"`
	VariableRanges *yaml.Node `yaml:"variable_ranges,omitempty" json:"variable_ranges,omitempty"`
	OptionRules    *yaml.Node `yaml:"option_generation_rules,omitempty" json:"option_generation_rules,omitempty"`
	CorrectFormula string     `yaml:"correct_answer_equation,omitempty" json:"correct_answer_equation,omitempty"`
	Options        *yaml.Node `yaml:"options,omitempty" json:"options,omitempty"`
	NoOfTimes      int        `yaml:"no_of_times,omitempty" json:"no_of_times,omitempty"`
}

// Import reads one bank file and writes its bank and questions through
// the store. A non-empty bankID targets an existing bank, overriding the
// file's own header. The store validates each question at write time, so
// a malformed question fails the import with its parse error.
func Import(ctx context.Context, r io.Reader, store question.Store, bankID string) (question.Bank, int, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return question.Bank{}, 0, fmt.Errorf("decode bank file: %w", err)
	}

	var bank question.Bank
	var err error
	if bankID != "" {
		bank, err = store.GetBank(ctx, bankID)
	} else {
		if f.Bank.Title == "" {
			return question.Bank{}, 0, fmt.Errorf("bank file has no title")
		}
		bank, err = store.PutBank(ctx, question.Bank{
			ID:          f.Bank.ID,
			Title:       f.Bank.Title,
			Description: f.Bank.Description,
		})
	}
	if err != nil {
		return question.Bank{}, 0, err
	}

	n := 0
	for i, qd := range f.Questions {
		rec, err := qd.record(bank.ID)
		if err != nil {
			return question.Bank{}, 0, fmt.Errorf("question %d: %w", i+1, err)
		}
		if _, err := store.PutQuestion(ctx, rec); err != nil {
			return question.Bank{}, 0, fmt.Errorf("question %d: %w", i+1, err)
		}
		n++
	}
	return bank, n, nil
}

// Export writes the bank and all its questions as one YAML document.
func Export(ctx context.Context, w io.Writer, store question.Store, bankID string) error {
	bank, err := store.GetBank(ctx, bankID)
	if err != nil {
		return err
	}
	recs, err := store.ListQuestions(ctx, bankID)
	if err != nil {
		return err
	}
	f := File{Bank: BankDoc{ID: bank.ID, Title: bank.Title, Description: bank.Description}}
	for _, rec := range recs {
		qd := QuestionDoc{
			ID:             rec.ID,
			Type:           rec.Type,
			QuestionText:   rec.QuestionText,
			Template:       rec.Template,
			CorrectFormula: rec.CorrectFormula,
			NoOfTimes:      rec.NoOfTimes,
		}
		if qd.VariableRanges, err = jsonNode(rec.VariableRanges); err != nil {
			return fmt.Errorf("question %s: %w", rec.ID, err)
		}
		if qd.OptionRules, err = jsonNode(rec.OptionRules); err != nil {
			return fmt.Errorf("question %s: %w", rec.ID, err)
		}
		if qd.Options, err = jsonNode(rec.OptionsJSON); err != nil {
			return fmt.Errorf("question %s: %w", rec.ID, err)
		}
		f.Questions = append(f.Questions, qd)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}

func (qd QuestionDoc) record(bankID string) (question.Record, error) {
	rec := question.Record{
		ID:             qd.ID,
		BankID:         bankID,
		Type:           qd.Type,
		QuestionText:   qd.QuestionText,
		Template:       qd.Template,
		CorrectFormula: qd.CorrectFormula,
		NoOfTimes:      qd.NoOfTimes,
	}
	var err error
	if rec.VariableRanges, err = nodeJSON(qd.VariableRanges); err != nil {
		return question.Record{}, fmt.Errorf("variable_ranges: %w", err)
	}
	if rec.OptionRules, err = nodeJSON(qd.OptionRules); err != nil {
		return question.Record{}, fmt.Errorf("option_generation_rules: %w", err)
	}
	if rec.OptionsJSON, err = nodeJSON(qd.Options); err != nil {
		return question.Record{}, fmt.Errorf("options: %w", err)
	}
	return rec, nil
}

// nodeJSON renders a YAML node as JSON, keeping mapping keys in their
// authored order.
func nodeJSON(n *yaml.Node) (json.RawMessage, error) {
	if n == nil {
		return nil, nil
	}
	v, err := nodeValue(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) != 1 {
			return nil, fmt.Errorf("unexpected document shape")
		}
		return nodeValue(n.Content[0])
	case yaml.MappingNode:
		om := orderedMap{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			om = append(om, orderedEntry{key: n.Content[i].Value, val: v})
		}
		return om, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	default:
		return nil, fmt.Errorf("unsupported yaml node kind %d", n.Kind)
	}
}

type orderedEntry struct {
	key string
	val any
}

// orderedMap marshals as a JSON object whose keys keep insertion order.
type orderedMap []orderedEntry

func (om orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, e := range om {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.val)
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

// jsonNode turns stored raw JSON back into a YAML node for export.
func jsonNode(raw json.RawMessage) (*yaml.Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var n yaml.Node
	if err := yaml.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		return n.Content[0], nil
	}
	return &n, nil
}
