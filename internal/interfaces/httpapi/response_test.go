package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andryanduta/predikta/internal/usecase"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{
			name:       "invalid input",
			err:        fmt.Errorf("%w: days out of range", usecase.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
			wantReason: "invalid_input",
		},
		{
			name:       "not found",
			err:        usecase.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantReason: "not_found",
		},
		{
			name:       "dependency unavailable",
			err:        fmt.Errorf("%w: provider rate limited", usecase.ErrDependencyUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantReason: "dependency_unavailable",
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantReason: "internal_error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			status, reason := mapError(tc.err)
			if status != tc.wantStatus || reason != tc.wantReason {
				t.Fatalf("mapError() = (%d, %q), want (%d, %q)", status, reason, tc.wantStatus, tc.wantReason)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeError(context.Background(), rec, fmt.Errorf("%w: days must be an integer", usecase.ErrInvalidInput))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Error != "invalid_input" || envelope.StatusCode != http.StatusBadRequest {
		t.Errorf("envelope = %+v", envelope)
	}
	if envelope.Message == "" {
		t.Error("envelope message is empty")
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeJSON(context.Background(), rec, http.StatusCreated, map[string]int{"answer": 42})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["answer"] != 42 {
		t.Errorf("body = %v", body)
	}
}
