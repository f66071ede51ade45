package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"log/slog"

	"gatehouse/internal/identity"
)

func TestHandleServiceErrorStatusMapping(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &identity.ValidationError{Message: "bad input"}, http.StatusBadRequest},
		{"conflict", identity.ErrConflict, http.StatusConflict},
		{"no credential", identity.ErrNoCredential, http.StatusBadRequest},
		{"authentication", identity.ErrAuthentication, http.StatusUnauthorized},
		{"not found", identity.ErrNotFound, http.StatusNotFound},
		{"tx timeout", identity.ErrTxTimeout, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(rec, tc.err, logger)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestHandleServiceErrorTimeoutSetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	handleServiceError(rec, identity.ErrTxTimeout, slog.New(slog.DiscardHandler))

	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected a Retry-After header on storage contention")
	}
}

func TestHandleServiceErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	handleServiceError(rec, errors.New("pq: connection refused at 10.1.2.3"), slog.New(slog.DiscardHandler))

	if strings.Contains(rec.Body.String(), "10.1.2.3") {
		t.Fatal("internal error detail must not reach the client")
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com","admin":true}`))
	rec := httptest.NewRecorder()

	var dst struct {
		Email string `json:"email"`
	}
	if err := decodeJSONBody(rec, req, &dst); err == nil {
		t.Fatal("expected an error for unknown fields")
	}
}

func TestDecodeJSONBodyRejectsOversizedPayload(t *testing.T) {
	body := `{"email":"` + strings.Repeat("a", int(maxJSONBodyBytes)) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()

	var dst struct {
		Email string `json:"email"`
	}
	err := decodeJSONBody(rec, req, &dst)
	if !errors.Is(err, errPayloadTooLarge) {
		t.Fatalf("expected errPayloadTooLarge, got %v", err)
	}

	writeJSONError(rec, err)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}
