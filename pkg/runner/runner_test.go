package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamscout/internal/database"
	"streamscout/pkg/checker"
	"streamscout/pkg/playlist"
	"streamscout/pkg/sites"
)

var testNow = time.Date(2025, time.October, 18, 18, 0, 0, 0, time.UTC)

type fakeSite struct {
	mu       sync.Mutex
	events   []sites.Event
	err      error
	resolved int32
	fail     map[string]bool
}

func (f *fakeSite) Name() string { return "fake" }

func (f *fakeSite) Events(context.Context) ([]sites.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events, f.err
}

func (f *fakeSite) Resolve(_ context.Context, event sites.Event) (*sites.Stream, error) {
	atomic.AddInt32(&f.resolved, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[event.Slug] {
		return nil, errors.New(event.Slug + ": no stream")
	}
	return &sites.Stream{
		URL:     "https://cdn.example/" + event.Slug + "/index.m3u8",
		Referer: "https://embed.example/",
	}, nil
}

func testEvents() []sites.Event {
	return []sites.Event{
		{Slug: "juventus-inter", Site: "fake", Title: "Juventus - Inter", Group: "Serie A", Start: testNow.Add(45 * time.Minute)},
		{Slug: "sky-sport-uno", Site: "fake", Title: "Sky Sport Uno"},
		{Slug: "yesterday", Site: "fake", Title: "Old Match", Start: testNow.Add(-30 * time.Hour)},
		{Slug: "next-week", Site: "fake", Title: "Future Match", Start: testNow.Add(7 * 24 * time.Hour)},
		{Slug: "broken", Site: "fake", Title: "Broken", Start: testNow},
	}
}

func newTestRunner(t *testing.T, deps Deps) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	r := New(deps, Config{
		Workers:      2,
		WindowBefore: 3 * time.Hour,
		WindowAfter:  12 * time.Hour,
		OutputDir:    dir,
		M3UFile:      "playlist.m3u8",
		JSONFile:     "streams.json",
		Playlist:     playlist.Options{HeaderStyle: playlist.HeaderStylePipe},
		Timeout:      time.Minute,
		MaxAge:       72 * time.Hour,
	})
	r.now = func() time.Time { return testNow }
	return r, dir
}

func readStreams(t *testing.T, dir string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "streams.json"))
	require.NoError(t, err)
	var streams map[string]string
	require.NoError(t, json.Unmarshal(data, &streams))
	return streams
}

func TestRunWritesOutputs(t *testing.T) {
	site := &fakeSite{events: testEvents(), fail: map[string]bool{"broken": true}}
	r, dir := newTestRunner(t, Deps{Sites: site})

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Events)
	assert.Equal(t, 2, result.Streams)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.Written)
	assert.EqualValues(t, 3, atomic.LoadInt32(&site.resolved))

	assert.Equal(t, map[string]string{
		"juventus-inter": "https://cdn.example/juventus-inter/index.m3u8",
		"sky-sport-uno":  "https://cdn.example/sky-sport-uno/index.m3u8",
	}, readStreams(t, dir))

	m3u, err := os.ReadFile(filepath.Join(dir, "playlist.m3u8"))
	require.NoError(t, err)
	assert.Contains(t, string(m3u), "#EXTM3U")
	assert.Contains(t, string(m3u), "|Referer=https%3A%2F%2Fembed.example%2F")

	require.Len(t, r.Entries(), 2)
	assert.Equal(t, "juventus-inter", r.Entries()[0].Slug)
	assert.Equal(t, 2, r.Last().Streams)
}

func TestEmptyRunKeepsOutputs(t *testing.T) {
	site := &fakeSite{events: testEvents(), fail: map[string]bool{"broken": true}}
	r, dir := newTestRunner(t, Deps{Sites: site})

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	site.mu.Lock()
	site.fail = map[string]bool{"juventus-inter": true, "sky-sport-uno": true, "broken": true}
	site.mu.Unlock()

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Streams)
	assert.False(t, result.Written)
	assert.Len(t, readStreams(t, dir), 2)
	assert.Len(t, r.Entries(), 2)
}

func TestRunNoEvents(t *testing.T) {
	site := &fakeSite{err: errors.New("fake: unreachable")}
	r, dir := newTestRunner(t, Deps{Sites: site})

	result, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, result.Error, "unreachable")
	assert.NoFileExists(t, filepath.Join(dir, "playlist.m3u8"))
}

type fakeChecker struct {
	recorded int
}

func (f *fakeChecker) CheckWithCaching(_ context.Context, targets []checker.StreamTarget) []checker.StreamResult {
	results := make([]checker.StreamResult, len(targets))
	for i, target := range targets {
		status := checker.StatusHealthy
		if target.Slug == "sky-sport-uno" {
			status = checker.StatusUnhealthy
		}
		results[i] = checker.StreamResult{Target: target, Status: status}
	}
	return results
}

func (f *fakeChecker) Record(_ context.Context, results []checker.StreamResult) {
	f.recorded += len(results)
}

func TestRunDropsUnplayableStreams(t *testing.T) {
	site := &fakeSite{events: testEvents(), fail: map[string]bool{"broken": true}}
	check := &fakeChecker{}
	r, dir := newTestRunner(t, Deps{Sites: site, Checker: check})

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Streams)
	assert.Equal(t, 2, check.recorded)
	assert.Equal(t, map[string]string{
		"juventus-inter": "https://cdn.example/juventus-inter/index.m3u8",
	}, readStreams(t, dir))
}

type fakeProxies struct {
	count     int
	refreshed int32
}

func (f *fakeProxies) Refresh(context.Context) error {
	atomic.AddInt32(&f.refreshed, 1)
	return errors.New("no sources")
}

func (f *fakeProxies) Count() int { return f.count }

func TestRunRefreshesEmptyProxyPool(t *testing.T) {
	site := &fakeSite{events: testEvents()}
	empty := &fakeProxies{}
	r, _ := newTestRunner(t, Deps{Sites: site, Proxies: empty})

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&empty.refreshed))

	filled := &fakeProxies{count: 10}
	r, _ = newTestRunner(t, Deps{Sites: site, Proxies: filled})
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, atomic.LoadInt32(&filled.refreshed))
}

func TestRunRecordsToDatabase(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	svc := database.NewService(db)

	site := &fakeSite{events: testEvents(), fail: map[string]bool{"broken": true}}
	r, _ := newTestRunner(t, Deps{Sites: site, DB: svc})

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	runs, err := svc.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.RunID, runs[0].ID)
	assert.Equal(t, "ok", runs[0].Status)
	assert.EqualValues(t, 2, runs[0].Streams)
	assert.EqualValues(t, 1, runs[0].Failed)

	stored, err := svc.ListStreams(context.Background(), "fake")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

type switchingSite struct {
	mu  sync.Mutex
	url string
}

func (s *switchingSite) Name() string { return "switching" }

func (s *switchingSite) Events(context.Context) ([]sites.Event, error) {
	return []sites.Event{{Slug: "sky-sport-uno", Site: "switching", Title: "Sky Sport Uno"}}, nil
}

func (s *switchingSite) Resolve(context.Context, sites.Event) (*sites.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &sites.Stream{URL: s.url}, nil
}

func (s *switchingSite) set(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
}

func TestRunRechecksChangedStreamURL(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fresh/master.m3u8" {
			w.Write([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1280000\n720/index.m3u8\n"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(cdn.Close)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "recheck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	svc := database.NewService(db)

	streamChecker := checker.NewDBStreamChecker(svc, checker.NewStreamChecker(3*time.Second, 2, ""), time.Hour)
	site := &switchingSite{}
	r, dir := newTestRunner(t, Deps{Sites: site, DB: svc, Checker: streamChecker})
	ctx := context.Background()

	site.set(cdn.URL + "/dead/index.m3u8")
	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Streams)

	site.set(cdn.URL + "/fresh/master.m3u8")
	result, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Streams)
	assert.True(t, result.Written)
	assert.Equal(t, map[string]string{"sky-sport-uno": cdn.URL + "/fresh/master.m3u8"}, readStreams(t, dir))

	stored, err := svc.GetStream(ctx, "sky-sport-uno")
	require.NoError(t, err)
	assert.Equal(t, checker.StatusHealthy.String(), stored.Status)

	site.set(cdn.URL + "/gone/index.m3u8")
	result, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Streams)

	stored, err = svc.GetStream(ctx, "sky-sport-uno")
	require.NoError(t, err)
	assert.Equal(t, cdn.URL+"/gone/index.m3u8", stored.URL)
	assert.NotEqual(t, checker.StatusHealthy.String(), stored.Status)
}

type blockingSite struct {
	fakeSite
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSite) Events(ctx context.Context) ([]sites.Event, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return b.fakeSite.Events(ctx)
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	site := &blockingSite{
		fakeSite: fakeSite{events: testEvents()},
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	r, _ := newTestRunner(t, Deps{Sites: site})

	assert.True(t, r.Trigger())
	<-site.entered

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunning)
	assert.False(t, r.Trigger())

	close(site.release)
	require.Eventually(t, func() bool { return r.Last() != nil }, 2*time.Second, 10*time.Millisecond)
	r.Stop()
}

func TestStartStop(t *testing.T) {
	site := &fakeSite{events: testEvents()}
	r, _ := newTestRunner(t, Deps{Sites: site})

	assert.Error(t, r.Start(), "zero interval")

	r.config.Interval = time.Hour
	require.NoError(t, r.Start())
	require.Eventually(t, func() bool { return r.Last() != nil }, 2*time.Second, 10*time.Millisecond)
	r.Stop()
	assert.Equal(t, 3, r.Last().Streams)
}

func TestConcurrentTriggersStartOneRun(t *testing.T) {
	site := &blockingSite{
		fakeSite: fakeSite{events: testEvents()},
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	r, _ := newTestRunner(t, Deps{Sites: site})

	var started int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Trigger() {
				atomic.AddInt32(&started, 1)
			}
		}()
	}
	wg.Wait()
	<-site.entered

	assert.EqualValues(t, 1, atomic.LoadInt32(&started))

	close(site.release)
	require.Eventually(t, func() bool { return r.Last() != nil }, 2*time.Second, 10*time.Millisecond)
	r.Stop()
}
