package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/takiuddin/nameharvest/internal/harvest"
	"github.com/takiuddin/nameharvest/internal/progress"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestServer(t *testing.T) (*httptest.Server, *progress.Recorder) {
	t.Helper()
	recorder := progress.NewRecorder("run-1", fixedClock{now: time.Unix(0, 0).UTC()})
	srv := httptest.NewServer(NewServer(recorder, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, recorder
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestProgressReflectsRecorder(t *testing.T) {
	t.Parallel()

	srv, recorder := newTestServer(t)
	recorder.PageCompleted(harvest.CategoryMale, 2, 15)
	recorder.PageCompleted(harvest.CategoryMale, 1, 10)

	resp, err := http.Get(srv.URL + "/progress")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap harvest.RunProgress
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Equal(t, "run-1", snap.RunID)
	require.Equal(t, 25, snap.TotalRecords)
	require.Equal(t, []int{1, 2}, snap.CompletedPages[harvest.CategoryMale])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
