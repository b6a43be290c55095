package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/examforge/examforge/internal/bankio"
	"github.com/examforge/examforge/internal/question"
)

func CreateBankHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b question.Bank
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if b.Title == "" {
			http.Error(w, "title required", 400)
			return
		}
		out, err := store.PutBank(r.Context(), b)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func ListBanksHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		banks, err := store.ListBanks(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, banks)
	}
}

func GetBankHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := store.GetBank(r.Context(), chi.URLParam(r, "bankID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		recs, err := store.ListQuestions(r.Context(), b.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bank": b, "questions": recs})
	}
}

func DeleteBankHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteBank(r.Context(), chi.URLParam(r, "bankID")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ImportBankHandler accepts a YAML or JSON bank file, either as a
// multipart "file" field or as the raw request body. With a {bankID}
// route param the questions land in that bank; without one the file's
// bank header creates or updates its own.
func ImportBankHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := r.Body
		if f, _, err := r.FormFile("file"); err == nil {
			defer f.Close()
			body = f
		}
		bank, n, err := bankio.Import(r.Context(), body, store, chi.URLParam(r, "bankID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bank": bank, "imported": n})
	}
}

func ExportBankHandler(store question.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		if err := bankio.Export(r.Context(), w, store, chi.URLParam(r, "bankID")); err != nil {
			writeErr(w, err)
			return
		}
	}
}
