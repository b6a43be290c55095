package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/examforge/examforge/internal/question"
)

// Service runs the attempt lifecycle: starting an attempt materializes
// every exam question into concrete instances and snapshots them, saving
// records selections against the snapshot, and submitting grades the
// snapshot and writes the graded responses.
type Service struct {
	store     Store
	questions question.Store
	events    EventAppender

	// seed feeds the per-attempt random source. Overridable in tests for
	// reproducible materialization.
	seed func() int64
	now  func() time.Time
}

func NewService(store Store, questions question.Store, events EventAppender) *Service {
	return &Service{
		store:     store,
		questions: questions,
		events:    events,
		seed:      func() int64 { return time.Now().UnixNano() },
		now:       time.Now,
	}
}

// StartedAttempt is what the taker receives at attempt start: the attempt
// row plus the instances with correctness stripped.
type StartedAttempt struct {
	Attempt   Attempt        `json:"attempt"`
	Questions []ViewQuestion `json:"questions"`
	Deadline  int64          `json:"deadline"`
}

// StartAttempt materializes every question of the exam and persists the
// attempt snapshot. A question whose materialization fails is skipped and
// counted; the attempt still starts as long as at least one instance was
// produced.
func (s *Service) StartAttempt(ctx context.Context, examID, userID string) (StartedAttempt, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return StartedAttempt{}, err
	}

	mat := question.NewMaterializer(rand.New(rand.NewSource(s.seed())))
	attemptID := uuid.NewString()
	var qs []AttemptQuestion
	failures := 0
	seq := 0
	for _, qid := range e.QuestionIDs {
		rec, err := s.questions.GetQuestion(ctx, qid)
		if err != nil {
			failures++
			log.Printf("attempt %s: question %s: load: %v", attemptID, qid, err)
			continue
		}
		def, err := question.Parse(rec)
		if err != nil {
			failures++
			log.Printf("attempt %s: question %s: parse: %v", attemptID, qid, err)
			continue
		}
		times := rec.NoOfTimes
		if times < 1 {
			times = 1
		}
		for i := 0; i < times; i++ {
			inst, err := mat.Materialize(def)
			if err != nil {
				failures++
				log.Printf("attempt %s: question %s: materialize: %v", attemptID, qid, err)
				continue
			}
			for _, warn := range inst.Warnings {
				log.Printf("attempt %s: question %s: %s", attemptID, qid, warn)
			}
			seq++
			qs = append(qs, AttemptQuestion{
				ID:         uuid.NewString(),
				AttemptID:  attemptID,
				QuestionID: qid,
				Seq:        seq,
				Text:       inst.Text,
				Options:    inst.Options,
				Metadata: &ReviewMetadata{
					Template:              rec.Template,
					GeneratedQuestionText: inst.Text,
					VariableRanges:        rec.VariableRanges,
					OptionGenerationRules: rec.OptionRules,
				},
			})
		}
	}
	if len(qs) == 0 {
		return StartedAttempt{}, fmt.Errorf("exam %s: no question could be generated", examID)
	}

	a := Attempt{
		ID:                 attemptID,
		ExamID:             examID,
		UserID:             userID,
		Status:             StatusInProgress,
		GenerationFailures: failures,
		StartedAt:          s.now().Unix(),
	}
	if err := s.store.CreateAttempt(ctx, a, qs); err != nil {
		return StartedAttempt{}, err
	}
	if err := s.events.Append(ctx, attemptEvent(EventAttemptStarted, a)); err != nil {
		log.Printf("attempt %s: event append: %v", attemptID, err)
	}

	views := make([]ViewQuestion, 0, len(qs))
	for _, q := range qs {
		views = append(views, q.View())
	}
	return StartedAttempt{
		Attempt:   a,
		Questions: views,
		Deadline:  a.StartedAt + int64(e.DurationMinutes)*60,
	}, nil
}

// AttemptForUser returns the taker view of an in-progress or submitted
// attempt. Only the owner may see it.
func (s *Service) AttemptForUser(ctx context.Context, attemptID, userID string) (Attempt, []ViewQuestion, error) {
	a, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return Attempt{}, nil, err
	}
	qs, err := s.store.AttemptQuestions(ctx, attemptID)
	if err != nil {
		return Attempt{}, nil, err
	}
	views := make([]ViewQuestion, 0, len(qs))
	for _, q := range qs {
		views = append(views, q.View())
	}
	return a, views, nil
}

// SaveAnswer records the selected option for one attempt question. An
// empty optionID clears the selection.
func (s *Service) SaveAnswer(ctx context.Context, attemptID, userID, attemptQuestionID, optionID string) error {
	a, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if a.Status != StatusInProgress {
		return ErrClosed
	}
	// Late saves are rejected; submit stays open so answers saved in time
	// are never lost.
	e, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return err
	}
	if e.DurationMinutes > 0 && s.now().Unix() > a.StartedAt+int64(e.DurationMinutes)*60 {
		return ErrClosed
	}
	return s.store.SaveSelection(ctx, attemptID, attemptQuestionID, optionID)
}

// Submit grades the attempt against its snapshot and writes one graded
// response per question. Submitting twice returns the attempt as already
// graded.
func (s *Service) Submit(ctx context.Context, attemptID, userID string) (Attempt, error) {
	a, err := s.ownedAttempt(ctx, attemptID, userID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusSubmitted {
		return a, nil
	}
	qs, err := s.store.AttemptQuestions(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}

	now := s.now().Unix()
	resps := make([]Response, 0, len(qs))
	for _, q := range qs {
		correct := q.CorrectOption()
		switch {
		case q.Selected == "":
			a.SkippedCount++
		case q.Selected == correct.ID:
			a.CorrectCount++
		default:
			a.WrongCount++
		}
		resps = append(resps, Response{
			ID:                uuid.NewString(),
			AttemptID:         attemptID,
			AttemptQuestionID: q.ID,
			QuestionID:        q.QuestionID,
			SelectedOption:    q.Selected,
			CorrectOption:     correct.ID,
			IsCorrect:         q.Selected != "" && q.Selected == correct.ID,
			Metadata:          q.Metadata,
			CreatedAt:         now,
		})
	}
	if len(qs) > 0 {
		a.Score = 100 * float64(a.CorrectCount) / float64(len(qs))
	}
	a.Status = StatusSubmitted
	a.SubmittedAt = &now
	if err := s.store.FinishAttempt(ctx, a, resps); err != nil {
		return Attempt{}, err
	}
	if err := s.events.Append(ctx, attemptEvent(EventAttemptSubmitted, a)); err != nil {
		log.Printf("attempt %s: event append: %v", attemptID, err)
	}
	return a, nil
}

// Result is one graded question in a review, pairing the response with
// the snapshotted question it answered.
type Result struct {
	Question ViewQuestion `json:"question"`
	Response Response     `json:"response"`
}

// Results returns the graded review of a submitted attempt. Owners and
// reviewers with attempt:view-all both land here; ownership is checked by
// the caller for the latter.
func (s *Service) Results(ctx context.Context, attemptID, userID string) (Attempt, []Result, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, nil, err
	}
	if userID != "" && a.UserID != userID {
		return Attempt{}, nil, ErrForbidden
	}
	if a.Status != StatusSubmitted {
		return Attempt{}, nil, errors.New("attempt not submitted")
	}
	qs, err := s.store.AttemptQuestions(ctx, attemptID)
	if err != nil {
		return Attempt{}, nil, err
	}
	resps, err := s.store.Responses(ctx, attemptID)
	if err != nil {
		return Attempt{}, nil, err
	}
	byQ := make(map[string]Response, len(resps))
	for _, rsp := range resps {
		byQ[rsp.AttemptQuestionID] = rsp
	}
	out := make([]Result, 0, len(qs))
	for _, q := range qs {
		out = append(out, Result{Question: q.View(), Response: byQ[q.ID]})
	}
	return a, out, nil
}

func (s *Service) ownedAttempt(ctx context.Context, attemptID, userID string) (Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.UserID != userID {
		return Attempt{}, ErrForbidden
	}
	return a, nil
}
