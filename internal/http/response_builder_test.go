package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Data(map[string]string{"id": "t1"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Error("custom header not set")
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"id":"t1"}` {
		t.Errorf("Body = %q", body)
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("got %d with %d bytes", w.Code, w.Body.Len())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Data(map[string]any{"bad": make(chan int)}).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid amount", core.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{"unknown account", fmt.Errorf("apply: %w", ledger.ErrUnknownAccount), http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("load transaction: %w", core.ErrNotFound), http.StatusNotFound},
		{"commit failed", fmt.Errorf("%w: disk full", ledger.ErrCommitFailed), http.StatusServiceUnavailable},
		{"contention", ledger.ErrConcurrentModification, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDomainError_HidesServerErrors(t *testing.T) {
	w := httptest.NewRecorder()
	DomainError(errors.New("sql: connection refused at 10.0.0.3")).Write(w)
	if strings.Contains(w.Body.String(), "10.0.0.3") {
		t.Errorf("internal error leaked: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	DomainError(core.ErrSameAccountTransfer).Write(w)
	if !strings.Contains(w.Body.String(), "same account") {
		t.Errorf("validation message missing: %s", w.Body.String())
	}
}
