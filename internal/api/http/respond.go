package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/question"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain errors onto HTTP statuses. Configuration errors
// are the author's fault and come back as 422 with the parse detail.
func writeErr(w http.ResponseWriter, err error) {
	var ce *question.ConfigError
	switch {
	case errors.Is(err, question.ErrNotFound), errors.Is(err, exam.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, exam.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, exam.ErrClosed):
		http.Error(w, "attempt already submitted", http.StatusConflict)
	case errors.As(err, &ce):
		http.Error(w, ce.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
