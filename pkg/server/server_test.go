package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamscout/internal/database"
	"streamscout/pkg/manager"
	"streamscout/pkg/playlist"
	"streamscout/pkg/runner"
)

type fakeSource struct {
	entries  []playlist.Entry
	last     *runner.Result
	running  bool
	triggers int
}

func (f *fakeSource) Entries() []playlist.Entry { return f.entries }

func (f *fakeSource) Last() *runner.Result { return f.last }

func (f *fakeSource) Trigger() bool {
	if f.running {
		return false
	}
	f.triggers++
	return true
}

func testSource() *fakeSource {
	return &fakeSource{
		entries: []playlist.Entry{
			{Slug: "sky-sport-uno", Title: "Sky Sport Uno", URL: "https://cdn.example/uno/index.m3u8", Referer: "https://embed.example/"},
		},
		last: &runner.Result{RunID: "run-1", Events: 3, Streams: 1, Failed: 2},
	}
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestPlaylistEndpoints(t *testing.T) {
	s := NewServer(testSource(), nil, nil, nil)

	rec := do(t, s, http.MethodGet, "/playlist.m3u8")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "#EXTM3U"))
	assert.Contains(t, rec.Body.String(), "https://cdn.example/uno/index.m3u8|Referer=https%3A%2F%2Fembed.example%2F")

	rec = do(t, s, http.MethodGet, "/streams.json")
	require.Equal(t, http.StatusOK, rec.Code)
	var streams map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &streams))
	assert.Equal(t, map[string]string{"sky-sport-uno": "https://cdn.example/uno/index.m3u8"}, streams)
}

func TestHealthBeforeAndAfterStreams(t *testing.T) {
	source := &fakeSource{}
	s := NewServer(source, nil, nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/playlist.m3u8").Code)

	source.entries = testSource().entries
	rec := do(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"streams": 1`)
}

func TestStats(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	proxies := manager.NewManager(manager.Config{MaxFailures: 3})
	s := NewServer(testSource(), proxies, database.NewService(db), nil)

	do(t, s, http.MethodGet, "/streams.json")
	do(t, s, http.MethodGet, "/missing")

	rec := do(t, s, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		LastRun  runner.Result   `json:"last_run"`
		Streams  int             `json:"streams"`
		Proxies  *manager.Stats  `json:"proxies"`
		Database *database.Stats `json:"database"`
		Server   Stats           `json:"server"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "run-1", stats.LastRun.RunID)
	assert.Equal(t, 2, stats.LastRun.Failed)
	assert.Equal(t, 1, stats.Streams)
	require.NotNil(t, stats.Proxies)
	assert.Equal(t, 0, stats.Proxies.TotalProxies)
	require.NotNil(t, stats.Database)
	assert.EqualValues(t, 1, stats.Server.RequestsHandled)
	assert.EqualValues(t, 1, stats.Server.FailedRequests)
}

func TestRefresh(t *testing.T) {
	source := testSource()
	s := NewServer(source, nil, nil, nil)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodGet, "/refresh").Code)
	assert.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/refresh").Code)
	assert.Equal(t, 1, source.triggers)

	source.running = true
	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/refresh").Code)
	assert.Equal(t, 1, source.triggers)
}

func TestMethodAndPathChecks(t *testing.T) {
	s := NewServer(testSource(), nil, nil, nil)

	rec := do(t, s, http.MethodPost, "/playlist.m3u8")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodHead, "/health").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/favicon.ico").Code)
}
