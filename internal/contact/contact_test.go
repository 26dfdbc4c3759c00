package contact

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Simplici0/labsite/internal/db"
	"github.com/Simplici0/labsite/internal/migrations"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func newTestService(t *testing.T, endpoint string) (*Service, *sql.DB) {
	t.Helper()
	database := newTestDB(t)
	s := NewService(database, endpoint, time.Second, 3, zap.NewNop())
	s.retryWait = time.Millisecond
	return s, database
}

func validRequest() Request {
	return Request{Name: " Иван ", Email: "ivan@example.com", Message: "Нужны испытания керна"}
}

func storedRequests(t *testing.T, database *sql.DB) (total, delivered int) {
	t.Helper()
	if err := database.QueryRow(`SELECT COUNT(*), COALESCE(SUM(delivered), 0) FROM contact_requests`).Scan(&total, &delivered); err != nil {
		t.Fatalf("count contact requests: %v", err)
	}
	return total, delivered
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name   string
		req    Request
		fields []string
	}{
		{"valid", validRequest(), nil},
		{"empty", Request{}, []string{"name", "email", "message"}},
		{"bad email", Request{Name: "a", Email: "not-an-email", Message: "m"}, []string{"email"}},
		{"display name email", Request{Name: "a", Email: "A <a@example.com>", Message: "m"}, []string{"email"}},
		{"blank message", Request{Name: "a", Email: "a@example.com", Message: "   "}, []string{"message"}},
	}

	for _, tc := range cases {
		got, err := tc.req.Normalize()
		if len(tc.fields) == 0 {
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tc.name, err)
			}
			if got.Name != "Иван" {
				t.Fatalf("%s: name not trimmed: %q", tc.name, got.Name)
			}
			continue
		}
		verr, ok := err.(*ValidationError)
		if !ok {
			t.Fatalf("%s: error = %v, want *ValidationError", tc.name, err)
		}
		if len(verr.Fields) != len(tc.fields) {
			t.Fatalf("%s: fields = %v, want %v", tc.name, verr.Fields, tc.fields)
		}
		for _, f := range tc.fields {
			if _, ok := verr.Fields[f]; !ok {
				t.Fatalf("%s: missing field %q in %v", tc.name, f, verr.Fields)
			}
		}
	}
}

func TestSubmit_WithoutEndpointStoresRequest(t *testing.T) {
	s, database := newTestService(t, "")

	if err := s.Submit(context.Background(), validRequest()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	total, delivered := storedRequests(t, database)
	if total != 1 || delivered != 0 {
		t.Fatalf("stored=%d delivered=%d, want 1 and 0", total, delivered)
	}
}

func TestSubmit_InvalidRequestIsNotStored(t *testing.T) {
	s, database := newTestService(t, "")

	err := s.Submit(context.Background(), Request{Name: "x"})
	if !IsValidation(err) {
		t.Fatalf("Submit error = %v, want validation error", err)
	}
	if total, _ := storedRequests(t, database); total != 0 {
		t.Fatalf("invalid request stored: %d rows", total)
	}
}

func TestSubmit_DeliversToEndpoint(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, database := newTestService(t, srv.URL)
	if err := s.Submit(context.Background(), validRequest()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.Name != "Иван" || got.Email != "ivan@example.com" {
		t.Fatalf("endpoint received %+v", got)
	}
	if total, delivered := storedRequests(t, database); total != 1 || delivered != 1 {
		t.Fatalf("stored=%d delivered=%d, want 1 and 1", total, delivered)
	}
}

func TestSubmit_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, database := newTestService(t, srv.URL)
	if err := s.Submit(context.Background(), validRequest()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("endpoint called %d times, want 3", calls.Load())
	}
	if _, delivered := storedRequests(t, database); delivered != 1 {
		t.Fatalf("request not marked delivered")
	}
}

func TestSubmit_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s, database := newTestService(t, srv.URL)
	if err := s.Submit(context.Background(), validRequest()); err == nil {
		t.Fatalf("expected delivery error")
	}
	if calls.Load() != 1 {
		t.Fatalf("endpoint called %d times, want 1", calls.Load())
	}
	if total, delivered := storedRequests(t, database); total != 1 || delivered != 0 {
		t.Fatalf("stored=%d delivered=%d, want 1 and 0", total, delivered)
	}
}

func TestSubmit_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, _ := newTestService(t, srv.URL)
	if err := s.Submit(context.Background(), validRequest()); err == nil {
		t.Fatalf("expected delivery error")
	}
	if calls.Load() != 4 {
		t.Fatalf("endpoint called %d times, want 4", calls.Load())
	}
}
