package http

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/examforge/examforge/internal/question"
)

func PutQuestionHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec question.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if rec.BankID == "" {
			rec.BankID = chi.URLParam(r, "bankID")
		}
		if rec.BankID == "" {
			http.Error(w, "question_bank_id required", 400)
			return
		}
		out, err := store.PutQuestion(r.Context(), rec)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// UpdateQuestionHandler edits an existing question in place. The kind is
// fixed at creation; an edit that changes question_type is refused.
func UpdateQuestionHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, err := store.GetQuestion(r.Context(), chi.URLParam(r, "questionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		var rec question.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if rec.Type != "" && rec.Type != existing.Type {
			http.Error(w, "question_type cannot change", 400)
			return
		}
		rec.ID = existing.ID
		rec.BankID = existing.BankID
		rec.Type = existing.Type
		out, err := store.PutQuestion(r.Context(), rec)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func ListQuestionsHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := store.ListQuestions(r.Context(), chi.URLParam(r, "bankID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func GetQuestionHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.GetQuestion(r.Context(), chi.URLParam(r, "questionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func DeleteQuestionHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteQuestion(r.Context(), chi.URLParam(r, "questionID")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// PreviewQuestionHandler materializes a stored question once without
// touching any attempt, so an author can see what takers will get. A
// ?seed= query makes the preview reproducible.
func PreviewQuestionHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.GetQuestion(r.Context(), chi.URLParam(r, "questionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		def, err := question.Parse(rec)
		if err != nil {
			writeErr(w, err)
			return
		}
		var rng *rand.Rand
		if s := r.URL.Query().Get("seed"); s != "" {
			seed, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				http.Error(w, "bad seed", 400)
				return
			}
			rng = rand.New(rand.NewSource(seed))
		}
		inst, err := question.NewMaterializer(rng).Materialize(def)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inst)
	}
}
