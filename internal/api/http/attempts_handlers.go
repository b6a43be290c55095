package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/examforge/examforge/internal/auth/middleware"
	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/rbac"
)

func StartAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExamID string `json:"exam_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.ExamID == "" {
			http.Error(w, "exam_id required", 400)
			return
		}
		sub := authmw.SubjectFromContext(r.Context())
		if sub == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		started, err := svc.StartAttempt(r.Context(), req.ExamID, sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, started)
	}
}

func GetAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		a, qs, err := svc.AttemptForUser(r.Context(), chi.URLParam(r, "attemptID"), sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"attempt": a, "questions": qs})
	}
}

func SaveAnswerHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID string `json:"question_id"` // attempt question id
			OptionID   string `json:"option_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "question_id required", 400)
			return
		}
		sub := authmw.SubjectFromContext(r.Context())
		if err := svc.SaveAnswer(r.Context(), chi.URLParam(r, "attemptID"), sub, req.QuestionID, req.OptionID); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func SubmitAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		a, err := svc.Submit(r.Context(), chi.URLParam(r, "attemptID"), sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /attempts?user_id=...
// Callers with attempt:view-all may list anyone; everyone else is scoped
// to their own attempts regardless of the filter they ask for.
func ListAttemptsHandler(store exam.Store, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := authmw.SubjectFromContext(r.Context())
		if role == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if !checker.Has(role, "attempt:view-all") {
			userID = sub
		}
		list, err := store.ListAttempts(r.Context(), userID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// ListResultsHandler lists submitted attempts. Scoping matches
// ListAttemptsHandler: attempt:view-all sees everyone, others themselves.
func ListResultsHandler(store exam.Store, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := authmw.SubjectFromContext(r.Context())
		if role == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if !checker.Has(role, "attempt:view-all") {
			userID = sub
		}
		list, err := store.ListAttempts(r.Context(), userID)
		if err != nil {
			writeErr(w, err)
			return
		}
		out := make([]exam.Attempt, 0, len(list))
		for _, a := range list {
			if a.Status == exam.StatusSubmitted {
				out = append(out, a)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ResultsHandler returns the graded review of a submitted attempt. An
// attempt:view-all role may review any attempt; owners only their own.
func ResultsHandler(svc *exam.Service, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := authmw.SubjectFromContext(r.Context())
		if checker.Has(role, "attempt:view-all") {
			sub = "" // unscoped
		}
		a, results, err := svc.Results(r.Context(), chi.URLParam(r, "attemptID"), sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"attempt": a, "results": results})
	}
}
