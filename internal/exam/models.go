package exam

import (
	"encoding/json"

	"github.com/examforge/examforge/internal/question"
)

type Exam struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	DurationMinutes int      `json:"duration_minutes"`
	ForceTimeSec    int      `json:"force_time_sec,omitempty"`
	QuestionIDs     []string `json:"question_ids"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

// ReviewMetadata carries the authored shape of a question alongside the
// instance generated from it, so a reviewer can see both what was asked
// and how it was produced.
type ReviewMetadata struct {
	Template              string          `json:"template,omitempty"`
	GeneratedQuestionText string          `json:"generated_question_text"`
	VariableRanges        json.RawMessage `json:"variable_ranges,omitempty"`
	OptionGenerationRules json.RawMessage `json:"option_generation_rules,omitempty"`
}

// AttemptQuestion is one materialized instance snapshotted at attempt
// start. Grading and review read this snapshot, never the live question
// record, so edits to the bank cannot change an attempt already underway.
type AttemptQuestion struct {
	ID         string                     `json:"id"`
	AttemptID  string                     `json:"attempt_id"`
	QuestionID string                     `json:"question_id"`
	Seq        int                        `json:"seq"`
	Text       string                     `json:"question_text"`
	Options    []question.GeneratedOption `json:"options"`
	Metadata   *ReviewMetadata            `json:"metadata,omitempty"`
	Selected   string                     `json:"selected_option,omitempty"` // option ID
}

const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
)

type Attempt struct {
	ID                 string  `json:"id"`
	ExamID             string  `json:"exam_id"`
	UserID             string  `json:"user_id"`
	Status             string  `json:"status"` // in_progress|submitted
	Score              float64 `json:"score"`
	CorrectCount       int     `json:"correct_count"`
	WrongCount         int     `json:"wrong_count"`
	SkippedCount       int     `json:"skipped_count"`
	GenerationFailures int     `json:"generation_failures"`
	StartedAt          int64   `json:"started_at"`
	SubmittedAt        *int64  `json:"submitted_at,omitempty"`
}

// Response is the graded record of one attempt question, written at
// submit time.
type Response struct {
	ID                string          `json:"id"`
	AttemptID         string          `json:"attempt_id"`
	AttemptQuestionID string          `json:"attempt_question_id"`
	QuestionID        string          `json:"question_id"`
	SelectedOption    string          `json:"selected_option"`
	CorrectOption     string          `json:"correct_option"`
	IsCorrect         bool            `json:"is_correct"`
	Metadata          *ReviewMetadata `json:"metadata,omitempty"`
	CreatedAt         int64           `json:"created_at,omitempty"`
}

// ViewOption is an option as shown to the person taking the exam, with
// correctness stripped.
type ViewOption struct {
	ID   string `json:"id"`
	Text string `json:"option_text"`
}

// ViewQuestion is the taker-facing projection of an AttemptQuestion.
type ViewQuestion struct {
	ID       string       `json:"id"`
	Seq      int          `json:"seq"`
	Text     string       `json:"question_text"`
	Options  []ViewOption `json:"options"`
	Selected string       `json:"selected_option,omitempty"`
}

// CorrectOption returns the single correct option of the snapshot.
// Materialization guarantees exactly one exists.
func (aq AttemptQuestion) CorrectOption() question.GeneratedOption {
	for _, o := range aq.Options {
		if o.IsCorrect {
			return o
		}
	}
	return question.GeneratedOption{}
}

// View strips correctness and review metadata from an attempt question.
func (aq AttemptQuestion) View() ViewQuestion {
	opts := make([]ViewOption, 0, len(aq.Options))
	for _, o := range aq.Options {
		opts = append(opts, ViewOption{ID: o.ID, Text: o.Text})
	}
	return ViewQuestion{ID: aq.ID, Seq: aq.Seq, Text: aq.Text, Options: opts, Selected: aq.Selected}
}
