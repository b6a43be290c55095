package exam

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/examforge/examforge/internal/question"
)

type fakeStore struct {
	exams     map[string]Exam
	attempts  map[string]Attempt
	questions map[string][]AttemptQuestion
	responses map[string][]Response
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		exams:     map[string]Exam{},
		attempts:  map[string]Attempt{},
		questions: map[string][]AttemptQuestion{},
		responses: map[string][]Response{},
	}
}

func (f *fakeStore) PutExam(_ context.Context, e Exam) (Exam, error) {
	f.exams[e.ID] = e
	return e, nil
}
func (f *fakeStore) GetExam(_ context.Context, id string) (Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	return e, nil
}
func (f *fakeStore) ListExams(_ context.Context) ([]Exam, error) {
	out := []Exam{}
	for _, e := range f.exams {
		out = append(out, e)
	}
	return out, nil
}
func (f *fakeStore) DeleteExam(_ context.Context, id string) error {
	delete(f.exams, id)
	return nil
}
func (f *fakeStore) CreateAttempt(_ context.Context, a Attempt, qs []AttemptQuestion) error {
	f.attempts[a.ID] = a
	f.questions[a.ID] = qs
	return nil
}
func (f *fakeStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return a, nil
}
func (f *fakeStore) ListAttempts(_ context.Context, userID string) ([]Attempt, error) {
	out := []Attempt{}
	for _, a := range f.attempts {
		if userID == "" || a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}
func (f *fakeStore) AttemptQuestions(_ context.Context, attemptID string) ([]AttemptQuestion, error) {
	return f.questions[attemptID], nil
}
func (f *fakeStore) SaveSelection(_ context.Context, attemptID, aqID, optionID string) error {
	qs := f.questions[attemptID]
	for i := range qs {
		if qs[i].ID == aqID {
			qs[i].Selected = optionID
			return nil
		}
	}
	return ErrNotFound
}
func (f *fakeStore) FinishAttempt(_ context.Context, a Attempt, resps []Response) error {
	f.attempts[a.ID] = a
	f.responses[a.ID] = resps
	return nil
}
func (f *fakeStore) Responses(_ context.Context, attemptID string) ([]Response, error) {
	return f.responses[attemptID], nil
}

type fakeQuestionStore struct {
	recs map[string]question.Record
}

func (f *fakeQuestionStore) PutBank(_ context.Context, b question.Bank) (question.Bank, error) {
	return b, nil
}
func (f *fakeQuestionStore) GetBank(_ context.Context, _ string) (question.Bank, error) {
	return question.Bank{}, question.ErrNotFound
}
func (f *fakeQuestionStore) ListBanks(_ context.Context) ([]question.Bank, error) { return nil, nil }
func (f *fakeQuestionStore) DeleteBank(_ context.Context, _ string) error           { return nil }
func (f *fakeQuestionStore) PutQuestion(_ context.Context, rec question.Record) (question.Record, error) {
	f.recs[rec.ID] = rec
	return rec, nil
}
func (f *fakeQuestionStore) GetQuestion(_ context.Context, id string) (question.Record, error) {
	rec, ok := f.recs[id]
	if !ok {
		return question.Record{}, question.ErrNotFound
	}
	return rec, nil
}
func (f *fakeQuestionStore) ListQuestions(_ context.Context, _ string) ([]question.Record, error) {
	return nil, nil
}
func (f *fakeQuestionStore) DeleteQuestion(_ context.Context, _ string) error { return nil }

type fakeEvents struct{ events []Event }

func (f *fakeEvents) Append(_ context.Context, e Event) error {
	f.events = append(f.events, e)
	return nil
}

func additionRecord(id string, times int) question.Record {
	return question.Record{
		ID:             id,
		Type:           "dynamic",
		Template:       "What is {x} + {y}?",
		VariableRanges: json.RawMessage(`{"range_values":{"x":{"min":1,"max":1},"y":{"min":2,"max":2}}}`),
		OptionRules: json.RawMessage(`{
			"correct": ["{x}+{y}","units"],
			"wrong1": ["{x}-{y}","units"],
			"wrong2": ["{x}*{y}","units"],
			"wrong3": ["({x}+{y})*2","units"]
		}`),
		CorrectFormula: "{x}+{y}",
		NoOfTimes:      times,
	}
}

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeQuestionStore, *fakeEvents) {
	t.Helper()
	store := newFakeStore()
	questions := &fakeQuestionStore{recs: map[string]question.Record{}}
	events := &fakeEvents{}
	svc := NewService(store, questions, events)
	svc.seed = func() int64 { return 1 }
	return svc, store, questions, events
}

func TestStartAttemptSnapshotsInstances(t *testing.T) {
	svc, store, questions, events := newTestService(t)
	ctx := context.Background()

	questions.recs["q1"] = additionRecord("q1", 2)
	store.exams["e1"] = Exam{ID: "e1", Title: "Math", DurationMinutes: 30, QuestionIDs: []string{"q1"}}

	started, err := svc.StartAttempt(ctx, "e1", "alice")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	// no_of_times=2 yields two instances of the same question.
	if len(started.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(started.Questions))
	}
	for _, q := range started.Questions {
		if q.Text != "What is 1 + 2?" {
			t.Fatalf("text = %q", q.Text)
		}
		if len(q.Options) != 4 {
			t.Fatalf("got %d options", len(q.Options))
		}
	}
	if started.Attempt.GenerationFailures != 0 {
		t.Fatalf("failures = %d", started.Attempt.GenerationFailures)
	}
	if started.Deadline != started.Attempt.StartedAt+30*60 {
		t.Fatalf("deadline = %d", started.Deadline)
	}
	// Snapshot persisted with review metadata.
	qs := store.questions[started.Attempt.ID]
	if len(qs) != 2 || qs[0].Metadata == nil || qs[0].Metadata.Template != "What is {x} + {y}?" {
		t.Fatalf("snapshot = %+v", qs)
	}
	if len(events.events) != 1 || events.events[0].Type != EventAttemptStarted {
		t.Fatalf("events = %+v", events.events)
	}
}

func TestStartAttemptCountsGenerationFailures(t *testing.T) {
	svc, store, questions, _ := newTestService(t)
	ctx := context.Background()

	questions.recs["good"] = additionRecord("good", 1)
	questions.recs["broken"] = question.Record{
		ID:             "broken",
		Type:           "dynamic",
		Template:       "{x}?",
		VariableRanges: json.RawMessage(`{"x":{"min":5,"max":1}}`), // min > max
		OptionRules:    json.RawMessage(`{"correct":"1","wrong1":"2"}`),
	}
	store.exams["e1"] = Exam{ID: "e1", DurationMinutes: 10, QuestionIDs: []string{"good", "broken"}}

	started, err := svc.StartAttempt(ctx, "e1", "alice")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if len(started.Questions) != 1 {
		t.Fatalf("got %d questions, want 1", len(started.Questions))
	}
	if started.Attempt.GenerationFailures != 1 {
		t.Fatalf("failures = %d, want 1", started.Attempt.GenerationFailures)
	}
}

func TestStartAttemptFailsWhenNothingGenerates(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.exams["e1"] = Exam{ID: "e1", DurationMinutes: 10, QuestionIDs: []string{"missing"}}
	if _, err := svc.StartAttempt(context.Background(), "e1", "alice"); err == nil {
		t.Fatal("expected error when no question can be generated")
	}
}

func TestStartAttemptViewHidesCorrectness(t *testing.T) {
	svc, store, questions, _ := newTestService(t)
	questions.recs["q1"] = additionRecord("q1", 1)
	store.exams["e1"] = Exam{ID: "e1", DurationMinutes: 10, QuestionIDs: []string{"q1"}}

	started, err := svc.StartAttempt(context.Background(), "e1", "alice")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	buf, err := json.Marshal(started)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if jsonContainsKey(decoded, "is_correct") {
		t.Fatal("taker payload leaks is_correct")
	}
}

func jsonContainsKey(v any, key string) bool {
	switch x := v.(type) {
	case map[string]any:
		for k, vv := range x {
			if k == key || jsonContainsKey(vv, key) {
				return true
			}
		}
	case []any:
		for _, vv := range x {
			if jsonContainsKey(vv, key) {
				return true
			}
		}
	}
	return false
}

func TestSubmitGradesAgainstSnapshot(t *testing.T) {
	svc, store, questions, events := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"q1", "q2", "q3"} {
		questions.recs[id] = additionRecord(id, 1)
	}
	store.exams["e1"] = Exam{ID: "e1", DurationMinutes: 10, QuestionIDs: []string{"q1", "q2", "q3"}}

	started, err := svc.StartAttempt(ctx, "e1", "alice")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	attemptID := started.Attempt.ID
	qs := store.questions[attemptID]

	// Answer the first correctly, the second wrongly, skip the third.
	correct := qs[0].CorrectOption()
	if err := svc.SaveAnswer(ctx, attemptID, "alice", qs[0].ID, correct.ID); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	var wrongID string
	for _, o := range qs[1].Options {
		if !o.IsCorrect {
			wrongID = o.ID
			break
		}
	}
	if err := svc.SaveAnswer(ctx, attemptID, "alice", qs[1].ID, wrongID); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	a, err := svc.Submit(ctx, attemptID, "alice")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if a.CorrectCount != 1 || a.WrongCount != 1 || a.SkippedCount != 1 {
		t.Fatalf("counts = %d/%d/%d", a.CorrectCount, a.WrongCount, a.SkippedCount)
	}
	if a.Score < 33.3 || a.Score > 33.4 {
		t.Fatalf("score = %v", a.Score)
	}
	if a.Status != StatusSubmitted || a.SubmittedAt == nil {
		t.Fatalf("attempt = %+v", a)
	}
	resps := store.responses[attemptID]
	if len(resps) != 3 {
		t.Fatalf("got %d responses", len(resps))
	}
	if !resps[0].IsCorrect || resps[1].IsCorrect || resps[2].IsCorrect {
		t.Fatalf("responses graded wrong: %+v", resps)
	}
	if resps[2].SelectedOption != "" {
		t.Fatalf("skipped response = %+v", resps[2])
	}
	if len(events.events) != 2 || events.events[1].Type != EventAttemptSubmitted {
		t.Fatalf("events = %+v", events.events)
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	svc, store, questions, _ := newTestService(t)
	ctx := context.Background()
	questions.recs["q1"] = additionRecord("q1", 1)
	store.exams["e1"] = Exam{ID: "e1", DurationMinutes: 10, QuestionIDs: []string{"q1"}}

	started, _ := svc.StartAttempt(ctx, "e1", "alice")
	first, err := svc.Submit(ctx, started.Attempt.ID, "alice")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := svc.Submit(ctx, started.Attempt.ID, "alice")
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if second.Score != first.Score || second.Status != StatusSubmitted {
		t.Fatalf("second submit changed the attempt: %+v vs %+v", first, second)
	}
}

func TestAttemptOwnership(t *testing.T) {
	svc, store, questions, _ := newTestService(t)
	ctx := context.Background()
	questions.recs["q1"] = additionRecord("q1", 1)
	store.exams["e1"] = Exam{ID: "e1", DurationMinutes: 10, QuestionIDs: []string{"q1"}}

	started, _ := svc.StartAttempt(ctx, "e1", "alice")
	if _, _, err := svc.AttemptForUser(ctx, started.Attempt.ID, "bob"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if err := svc.SaveAnswer(ctx, started.Attempt.ID, "bob", "x", "y"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Submit(ctx, started.Attempt.ID, "bob"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestSaveAnswerAfterSubmitRejected(t *testing.T) {
	svc, store, questions, _ := newTestService(t)
	ctx := context.Background()
	questions.recs["q1"] = additionRecord("q1", 1)
	store.exams["e1"] = Exam{ID: "e1", DurationMinutes: 10, QuestionIDs: []string{"q1"}}

	started, _ := svc.StartAttempt(ctx, "e1", "alice")
	if _, err := svc.Submit(ctx, started.Attempt.ID, "alice"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	qs := store.questions[started.Attempt.ID]
	err := svc.SaveAnswer(ctx, started.Attempt.ID, "alice", qs[0].ID, "whatever")
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestSaveAnswerAfterDeadlineRejected(t *testing.T) {
	svc, store, questions, _ := newTestService(t)
	ctx := context.Background()
	questions.recs["q1"] = additionRecord("q1", 1)
	store.exams["e1"] = Exam{ID: "e1", DurationMinutes: 10, QuestionIDs: []string{"q1"}}

	started, err := svc.StartAttempt(ctx, "e1", "alice")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	qs := store.questions[started.Attempt.ID]

	// Jump past the deadline.
	svc.now = func() time.Time { return time.Unix(started.Attempt.StartedAt+10*60+1, 0) }
	err = svc.SaveAnswer(ctx, started.Attempt.ID, "alice", qs[0].ID, qs[0].Options[0].ID)
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	// Submit still goes through and grades what was saved in time.
	if _, err := svc.Submit(ctx, started.Attempt.ID, "alice"); err != nil {
		t.Fatalf("Submit after deadline: %v", err)
	}
}

func TestResults(t *testing.T) {
	svc, store, questions, _ := newTestService(t)
	ctx := context.Background()
	questions.recs["q1"] = additionRecord("q1", 1)
	store.exams["e1"] = Exam{ID: "e1", DurationMinutes: 10, QuestionIDs: []string{"q1"}}

	started, _ := svc.StartAttempt(ctx, "e1", "alice")
	qs := store.questions[started.Attempt.ID]
	correct := qs[0].CorrectOption()
	_ = svc.SaveAnswer(ctx, started.Attempt.ID, "alice", qs[0].ID, correct.ID)
	if _, _, err := svc.Results(ctx, started.Attempt.ID, "alice"); err == nil {
		t.Fatal("results before submit should fail")
	}
	if _, err := svc.Submit(ctx, started.Attempt.ID, "alice"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	a, results, err := svc.Results(ctx, started.Attempt.ID, "alice")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if a.CorrectCount != 1 || len(results) != 1 {
		t.Fatalf("attempt=%+v results=%+v", a, results)
	}
	r := results[0]
	if !r.Response.IsCorrect || r.Response.CorrectOption != correct.ID {
		t.Fatalf("response = %+v", r.Response)
	}
	if r.Question.Text != "What is 1 + 2?" {
		t.Fatalf("question = %+v", r.Question)
	}

	// A stranger without review rights is refused.
	if _, _, err := svc.Results(ctx, started.Attempt.ID, "bob"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	// Unscoped (reviewer) access works.
	if _, _, err := svc.Results(ctx, started.Attempt.ID, ""); err != nil {
		t.Fatalf("reviewer Results: %v", err)
	}
}
