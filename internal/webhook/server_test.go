package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetsync/internal/models"
	"meetsync/internal/vault"
)

type fakeProcessor struct {
	err  error
	last *models.TranscriptPayload
}

func (f *fakeProcessor) ProcessTranscript(ctx context.Context, p *models.TranscriptPayload) error {
	f.last = p
	return f.err
}

func newTestServer(proc *fakeProcessor, token string) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(logger, proc, token, nil)
}

func post(t *testing.T, srv *Server, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWebhookAcceptsTranscript(t *testing.T) {
	proc := &fakeProcessor{}
	rec := post(t, newTestServer(proc, ""), `{"event_id":"ev-1","transcript":"hello"}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, proc.last)
	assert.Equal(t, "ev-1", proc.last.EventID)
	assert.Equal(t, "hello", proc.last.Transcript)
	// A missing start time passes through as zero; the merge path recovers
	// times from the calendar rather than inventing them here.
	assert.True(t, proc.last.StartTime.IsZero())
}

func TestWebhookRejectsBadToken(t *testing.T) {
	proc := &fakeProcessor{}
	srv := newTestServer(proc, "s3cret")

	rec := post(t, srv, `{"event_id":"ev-1"}`, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, proc.last)

	rec = post(t, srv, `{"event_id":"ev-1"}`, "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	rec := post(t, newTestServer(&fakeProcessor{}, ""), `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRequiresEventID(t *testing.T) {
	rec := post(t, newTestServer(&fakeProcessor{}, ""), `{"transcript":"hello"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRejectsNonPost(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	newTestServer(&fakeProcessor{}, "").Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebhookMapsProcessorErrors(t *testing.T) {
	rec := post(t, newTestServer(&fakeProcessor{err: vault.ErrNotFound}, ""), `{"event_id":"ev-1"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(t, newTestServer(&fakeProcessor{err: errors.New("boom")}, ""), `{"event_id":"ev-1"}`, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(&fakeProcessor{}, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReflectsReadiness(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ready := false
	srv := NewServer(logger, &fakeProcessor{}, "", func() bool { return ready })

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
