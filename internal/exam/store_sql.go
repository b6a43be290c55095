package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrClosed    = errors.New("attempt already submitted")
)

type Store interface {
	PutExam(ctx context.Context, e Exam) (Exam, error)
	GetExam(ctx context.Context, id string) (Exam, error)
	ListExams(ctx context.Context) ([]Exam, error)
	DeleteExam(ctx context.Context, id string) error

	CreateAttempt(ctx context.Context, a Attempt, qs []AttemptQuestion) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, userID string) ([]Attempt, error)
	AttemptQuestions(ctx context.Context, attemptID string) ([]AttemptQuestion, error)
	SaveSelection(ctx context.Context, attemptID, attemptQuestionID, optionID string) error
	FinishAttempt(ctx context.Context, a Attempt, resps []Response) error
	Responses(ctx context.Context, attemptID string) ([]Response, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutExam(ctx context.Context, e Exam) (Exam, error) {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	qj, err := json.Marshal(e.QuestionIDs)
	if err != nil {
		return Exam{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exams (id,title,duration_minutes,force_time_sec,question_ids_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, duration_minutes=EXCLUDED.duration_minutes,
		  force_time_sec=EXCLUDED.force_time_sec, question_ids_json=EXCLUDED.question_ids_json`,
		e.ID, e.Title, e.DurationMinutes, e.ForceTimeSec, string(qj), e.CreatedAt)
	return e, err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,duration_minutes,force_time_sec,question_ids_json,created_at FROM exams WHERE id=$1`, id)
	var e Exam
	var qjson string
	if err := row.Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.ForceTimeSec, &qjson, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, ErrNotFound
		}
		return Exam{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &e.QuestionIDs); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (s *SQLStore) ListExams(ctx context.Context) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,title,duration_minutes,force_time_sec,question_ids_json,created_at FROM exams ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Exam{}
	for rows.Next() {
		var e Exam
		var qjson string
		if err := rows.Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.ForceTimeSec, &qjson, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(qjson), &e.QuestionIDs); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt, qs []AttemptQuestion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO attempts
		(id,exam_id,user_id,status,score,correct_count,wrong_count,skipped_count,generation_failures,started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.ExamID, a.UserID, a.Status, a.Score,
		a.CorrectCount, a.WrongCount, a.SkippedCount, a.GenerationFailures, a.StartedAt)
	if err != nil {
		return err
	}
	for _, q := range qs {
		oj, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		mj, err := marshalMetadata(q.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO attempt_questions
			(id,attempt_id,question_id,seq,question_text,options_json,metadata_json,selected_option)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			q.ID, a.ID, q.QuestionID, q.Seq, q.Text, string(oj), mj, q.Selected)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,exam_id,user_id,status,score,correct_count,wrong_count,skipped_count,generation_failures,started_at,submitted_at
		FROM attempts WHERE id=$1`, id)
	return scanAttempt(row)
}

func (s *SQLStore) ListAttempts(ctx context.Context, userID string) ([]Attempt, error) {
	q := `SELECT id,exam_id,user_id,status,score,correct_count,wrong_count,skipped_count,generation_failures,started_at,submitted_at
		FROM attempts ORDER BY started_at DESC`
	args := []any{}
	if userID != "" {
		q = `SELECT id,exam_id,user_id,status,score,correct_count,wrong_count,skipped_count,generation_failures,started_at,submitted_at
		FROM attempts WHERE user_id=$1 ORDER BY started_at DESC`
		args = append(args, userID)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) AttemptQuestions(ctx context.Context, attemptID string) ([]AttemptQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,attempt_id,question_id,seq,question_text,options_json,metadata_json,selected_option
		FROM attempt_questions WHERE attempt_id=$1 ORDER BY seq`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []AttemptQuestion{}
	for rows.Next() {
		var q AttemptQuestion
		var oj, mj string
		if err := rows.Scan(&q.ID, &q.AttemptID, &q.QuestionID, &q.Seq, &q.Text, &oj, &mj, &q.Selected); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(oj), &q.Options); err != nil {
			return nil, err
		}
		if mj != "" {
			var md ReviewMetadata
			if err := json.Unmarshal([]byte(mj), &md); err != nil {
				return nil, err
			}
			q.Metadata = &md
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveSelection(ctx context.Context, attemptID, attemptQuestionID, optionID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE attempt_questions SET selected_option=$1 WHERE id=$2 AND attempt_id=$3`,
		optionID, attemptQuestionID, attemptID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) FinishAttempt(ctx context.Context, a Attempt, resps []Response) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `UPDATE attempts SET status=$1, score=$2, correct_count=$3, wrong_count=$4, skipped_count=$5, submitted_at=$6
		WHERE id=$7`,
		a.Status, a.Score, a.CorrectCount, a.WrongCount, a.SkippedCount, a.SubmittedAt, a.ID)
	if err != nil {
		return err
	}
	for _, rsp := range resps {
		mj, err := marshalMetadata(rsp.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO responses
			(id,attempt_id,attempt_question_id,question_id,selected_option,correct_option,is_correct,metadata_json,created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			rsp.ID, rsp.AttemptID, rsp.AttemptQuestionID, rsp.QuestionID,
			rsp.SelectedOption, rsp.CorrectOption, rsp.IsCorrect, mj, rsp.CreatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Responses(ctx context.Context, attemptID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,attempt_id,attempt_question_id,question_id,selected_option,correct_option,is_correct,metadata_json,created_at
		FROM responses WHERE attempt_id=$1 ORDER BY created_at`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Response{}
	for rows.Next() {
		var rsp Response
		var mj string
		if err := rows.Scan(&rsp.ID, &rsp.AttemptID, &rsp.AttemptQuestionID, &rsp.QuestionID,
			&rsp.SelectedOption, &rsp.CorrectOption, &rsp.IsCorrect, &mj, &rsp.CreatedAt); err != nil {
			return nil, err
		}
		if mj != "" {
			var md ReviewMetadata
			if err := json.Unmarshal([]byte(mj), &md); err != nil {
				return nil, err
			}
			rsp.Metadata = &md
		}
		out = append(out, rsp)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var submitted sql.NullInt64
	if err := row.Scan(&a.ID, &a.ExamID, &a.UserID, &a.Status, &a.Score,
		&a.CorrectCount, &a.WrongCount, &a.SkippedCount, &a.GenerationFailures,
		&a.StartedAt, &submitted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}
	if submitted.Valid {
		a.SubmittedAt = &submitted.Int64
	}
	return a, nil
}

func marshalMetadata(md *ReviewMetadata) (string, error) {
	if md == nil {
		return "", nil
	}
	buf, err := json.Marshal(md)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
