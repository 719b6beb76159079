package response

import (
	"encoding/json/v2"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	domainerrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, map[string]string{"title": "Dune"}, slog.New(slog.DiscardHandler))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Empty(t, env.Error)
}

func TestCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, nil, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	NoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, "bad input", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "bad input", env.Error)
}

func TestHandleError_DomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, domainerrors.NotFound("book not found"), slog.New(slog.DiscardHandler))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "book not found", env.Error)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestHandleError_WrappedDomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := domainerrors.Wrap(errors.New("boom"), domainerrors.CodeTimeout, "open book timed out")
	HandleError(rec, wrapped, slog.New(slog.DiscardHandler))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestHandleError_UnknownError(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, errors.New("mystery"), slog.New(slog.DiscardHandler))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "internal server error", env.Error)
}
