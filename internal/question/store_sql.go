package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Bank groups questions an administrator authors together.
type Bank struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

// Store persists question banks and their questions. Records go in and out
// in their raw stored shape; Parse turns them into Definitions at the point
// of use.
type Store interface {
	PutBank(ctx context.Context, b Bank) (Bank, error)
	GetBank(ctx context.Context, id string) (Bank, error)
	ListBanks(ctx context.Context) ([]Bank, error)
	DeleteBank(ctx context.Context, id string) error

	PutQuestion(ctx context.Context, rec Record) (Record, error)
	GetQuestion(ctx context.Context, id string) (Record, error)
	ListQuestions(ctx context.Context, bankID string) ([]Record, error)
	DeleteQuestion(ctx context.Context, id string) error
}

var ErrNotFound = errors.New("not found")

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutBank(ctx context.Context, b Bank) (Bank, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt == 0 {
		b.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO question_banks (id,title,description,created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description`,
		b.ID, b.Title, b.Description, b.CreatedAt)
	return b, err
}

func (s *SQLStore) GetBank(ctx context.Context, id string) (Bank, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,description,created_at FROM question_banks WHERE id=$1`, id)
	var b Bank
	if err := row.Scan(&b.ID, &b.Title, &b.Description, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bank{}, ErrNotFound
		}
		return Bank{}, err
	}
	return b, nil
}

func (s *SQLStore) ListBanks(ctx context.Context) ([]Bank, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,title,description,created_at FROM question_banks ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Bank{}
	for rows.Next() {
		var b Bank
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteBank(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM question_banks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) PutQuestion(ctx context.Context, rec Record) (Record, error) {
	// Reject malformed questions at write time so exam taking never meets
	// a record Parse would refuse.
	if _, err := Parse(rec); err != nil {
		return Record{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.NoOfTimes < 1 {
		rec.NoOfTimes = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO questions
		(id,question_bank_id,question_type,question_text,template,variable_ranges,option_generation_rules,correct_answer_equation,options_json,no_of_times,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
		  question_text=EXCLUDED.question_text, template=EXCLUDED.template,
		  variable_ranges=EXCLUDED.variable_ranges, option_generation_rules=EXCLUDED.option_generation_rules,
		  correct_answer_equation=EXCLUDED.correct_answer_equation, options_json=EXCLUDED.options_json,
		  no_of_times=EXCLUDED.no_of_times`,
		rec.ID, rec.BankID, rec.Type, rec.QuestionText, rec.Template,
		rawOrEmpty(rec.VariableRanges), rawOrEmpty(rec.OptionRules), rec.CorrectFormula,
		rawOrEmpty(rec.OptionsJSON), rec.NoOfTimes, time.Now().Unix())
	return rec, err
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,question_bank_id,question_type,question_text,template,variable_ranges,option_generation_rules,correct_answer_equation,options_json,no_of_times
		FROM questions WHERE id=$1`, id)
	return scanQuestion(row)
}

func (s *SQLStore) ListQuestions(ctx context.Context, bankID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,question_bank_id,question_type,question_text,template,variable_ranges,option_generation_rules,correct_answer_equation,options_json,no_of_times
		FROM questions WHERE question_bank_id=$1 ORDER BY created_at DESC`, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		rec, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (Record, error) {
	var rec Record
	var vr, rules, opts string
	if err := row.Scan(&rec.ID, &rec.BankID, &rec.Type, &rec.QuestionText, &rec.Template,
		&vr, &rules, &rec.CorrectFormula, &opts, &rec.NoOfTimes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if vr != "" {
		rec.VariableRanges = json.RawMessage(vr)
	}
	if rules != "" {
		rec.OptionRules = json.RawMessage(rules)
	}
	if opts != "" {
		rec.OptionsJSON = json.RawMessage(opts)
	}
	return rec, nil
}

func rawOrEmpty(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return string(raw)
}
