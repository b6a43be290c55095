package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultVocabulary(t *testing.T) {
	c := NewChecker(nil)
	if !c.Has("user", "attempt:create") {
		t.Fatal("user should hold attempt:create")
	}
	if c.Has("user", "bank:write") {
		t.Fatal("user must not hold bank:write")
	}
	if !c.Has("admin", "users:bulk_upsert") {
		t.Fatal("admin wildcard should grant everything")
	}
	if c.Has("ghost", "exam:view") {
		t.Fatal("unknown role holds nothing")
	}
	if !c.Any("user", "attempt:view-all", "attempt:view-own") {
		t.Fatal("Any should accept the second permission")
	}
}

func TestPrefixGrants(t *testing.T) {
	c := NewChecker(map[string][]string{"editor": {"bank:*"}})
	if !c.Has("editor", "bank:write") || !c.Has("editor", "bank:view") {
		t.Fatal("prefix grant should cover the bank namespace")
	}
	if c.Has("editor", "exam:create") {
		t.Fatal("prefix grant leaked outside its namespace")
	}
}

func TestRequireMiddleware(t *testing.T) {
	c := NewChecker(map[string][]string{"editor": {"bank:*"}})
	h := c.Require("bank:write", "question:write")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest("POST", "/banks", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithRole(req.Context(), "editor")))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithRole(req.Context(), "user")))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	// No role in context at all.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
