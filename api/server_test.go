package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rental-parser/browser"
	"rental-parser/models"
	"rental-parser/pipeline"
	"rental-parser/utils"
)

type stubRunner struct {
	got    string
	result *models.CrawlResult
}

func (s *stubRunner) RunCrawl(_ context.Context, source string) *models.CrawlResult {
	s.got = source
	return s.result
}

type stubStats struct {
	body json.RawMessage
	err  error
}

func (s stubStats) Stats(context.Context) (json.RawMessage, error) { return s.body, s.err }

type stubBrowser bool

func (b stubBrowser) Connected() bool { return bool(b) }

func newTestServer(runner CrawlRunner, stats stubStats, connected bool) http.Handler {
	s := NewServer(runner, stats, stubBrowser(connected), utils.NewNopLogger())
	s.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return s.Router()
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestParseSuccess(t *testing.T) {
	runner := &stubRunner{result: &models.CrawlResult{Found: 9, New: 7, Updated: 2, Duration: 12340 * time.Millisecond}}
	rec, body := do(t, newTestServer(runner, stubStats{}, true), http.MethodPost, "/parse/avito")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "avito", runner.got)
	require.Equal(t, map[string]any{"found": 9.0, "new": 7.0, "updated": 2.0, "duration": "12.34s"}, body)
}

func TestParseInvalidSource(t *testing.T) {
	runner := &stubRunner{result: &models.CrawlResult{Err: fmt.Errorf("%w: %q", pipeline.ErrInvalidSource, "domclick"), Duration: time.Millisecond}}
	rec, body := do(t, newTestServer(runner, stubStats{}, false), http.MethodPost, "/parse/domclick")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, body["error"], "invalid source")
	require.Equal(t, "0.00s", body["duration"])
}

func TestParseLaunchFailure(t *testing.T) {
	runner := &stubRunner{result: &models.CrawlResult{Err: &browser.LaunchError{Err: errors.New("no chrome")}, Duration: 1500 * time.Millisecond}}
	rec, body := do(t, newTestServer(runner, stubStats{}, false), http.MethodPost, "/parse/cian")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "browser: launch failed: no chrome", body["error"])
	require.Equal(t, "1.50s", body["duration"])
}

func TestParseRequiresPost(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&stubRunner{}, stubStats{}, true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parse/avito", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	for _, tt := range []struct {
		connected bool
		want      string
	}{
		{true, "connected"},
		{false, "not initialized"},
	} {
		rec, body := do(t, newTestServer(&stubRunner{}, stubStats{}, tt.connected), http.MethodGet, "/health")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, map[string]any{"status": "ok", "browser": tt.want, "timestamp": "2024-05-01T09:30:00Z"}, body)
	}
}

func TestStatsProxy(t *testing.T) {
	stats := stubStats{body: json.RawMessage(`{"total":3,"by_source":{"cian":3}}`)}
	rec := httptest.NewRecorder()
	newTestServer(&stubRunner{}, stats, true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"total":3,"by_source":{"cian":3}}`, rec.Body.String())
}

func TestStatsFailure(t *testing.T) {
	rec, body := do(t, newTestServer(&stubRunner{}, stubStats{err: errors.New("upstream: stats: status 502")}, true), http.MethodGet, "/stats")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "upstream: stats: status 502", body["error"])
}
