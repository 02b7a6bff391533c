package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/promptar/promptar/types"
)

func TestWriteErrorTypedError(t *testing.T) {
	rec := httptest.NewRecorder()
	err := types.NewError(types.ErrQuotaExceeded, "Service busy").
		WithHTTPStatus(http.StatusServiceUnavailable).
		WithRetryable(true)

	WriteError(rec, err, zaptest.NewLogger(t))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Service busy", body.Detail)
	assert.Equal(t, string(types.ErrQuotaExceeded), body.Code)
	assert.True(t, body.Retryable)
}

func TestWriteErrorCoercesPlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("raw upstream traceback"), zaptest.NewLogger(t))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "An internal error occurred", body.Detail)
	assert.NotContains(t, rec.Body.String(), "traceback")
}

func TestWriteErrorFallbackStatusMapping(t *testing.T) {
	cases := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrNotFound, http.StatusNotFound},
		{types.ErrBackendUnavailable, http.StatusServiceUnavailable},
		{types.ErrUpstreamTimeout, http.StatusServiceUnavailable},
		{types.ErrInternalError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(rec, types.NewError(tc.code, "x"), zaptest.NewLogger(t))
		assert.Equal(t, tc.want, rec.Code, string(tc.code))
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":"x","bogus":1}`))

	var dst struct {
		Prompt string `json:"prompt"`
	}
	err := DecodeJSONBody(rec, req, &dst, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResponseWriterCapturesStatusAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK) // second call must be ignored
	rw.Write([]byte("hello"))

	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, int64(5), rw.Bytes)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
