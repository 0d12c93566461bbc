package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentbroker/pkg/domain-errors"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type decisionBody struct {
	Decision string `json:"decision"`
	Count    int    `json:"count"`
	trimmed  bool
}

func (d *decisionBody) Normalize() {
	d.Decision = strings.TrimSpace(d.Decision)
	d.trimmed = true
}

func (d *decisionBody) Validate() error {
	if d.Decision == "" {
		return errors.New("decision is required")
	}
	if d.Count < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "count must not be negative")
	}
	return nil
}

func decodeBody(t *testing.T, body string) (*decisionBody, bool, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	out, ok := DecodeAndPrepare[decisionBody](rec, req, discard, context.Background(), "req-1")
	return out, ok, rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("normalizes then validates", func(t *testing.T) {
		out, ok, _ := decodeBody(t, `{"decision":"  approve ","count":2}`)
		require.True(t, ok)
		assert.Equal(t, "approve", out.Decision)
		assert.True(t, out.trimmed)
	})

	t.Run("malformed json is bad request", func(t *testing.T) {
		_, ok, rec := decodeBody(t, `{"decision":`)
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bad_request", errorCode(t, rec))
	})

	t.Run("unknown field is bad request", func(t *testing.T) {
		_, ok, rec := decodeBody(t, `{"decision":"approve","extra":1}`)
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("plain validation error maps to validation_error", func(t *testing.T) {
		_, ok, rec := decodeBody(t, `{"decision":"   "}`)
		require.False(t, ok)
		assert.Equal(t, "validation_error", errorCode(t, rec))
	})

	t.Run("domain validation error keeps its code", func(t *testing.T) {
		_, ok, rec := decodeBody(t, `{"decision":"approve","count":-1}`)
		require.False(t, ok)
		assert.Equal(t, "bad_request", errorCode(t, rec))
	})

	t.Run("oversized body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"decision":"approve"}`))
		req.Body = http.MaxBytesReader(rec, req.Body, 4)
		_, ok := DecodeJSON[decisionBody](rec, req, discard, context.Background(), "")
		require.False(t, ok)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "request body too large", resp.Description)
	})
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "consent not found"), http.StatusNotFound, "not_found"},
		{"invalid transition", dErrors.New(dErrors.CodeInvalidTransition, "already pending"), http.StatusConflict, "invalid_transition"},
		{"conflict", dErrors.New(dErrors.CodeConflict, "busy"), http.StatusConflict, "conflict"},
		{"forbidden", dErrors.New(dErrors.CodeForbidden, "not owner"), http.StatusForbidden, "forbidden"},
		{"unavailable", dErrors.New(dErrors.CodeUnavailable, "store down"), http.StatusServiceUnavailable, "unavailable"},
		{"wrapped domain error", dErrors.Wrap(errors.New("io"), dErrors.CodeTimeout, "slow"), http.StatusGatewayTimeout, "timeout"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}

	t.Run("unavailable advertises retry", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, dErrors.New(dErrors.CodeUnavailable, "x"))
		assert.Equal(t, RetryAfterSeconds, rec.Header().Get("Retry-After"))
	})

	t.Run("plain error leaks no detail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("password=hunter2"))
		assert.NotContains(t, rec.Body.String(), "hunter2")
	})
}
