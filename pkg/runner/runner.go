package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"

	"streamscout/internal/database"
	"streamscout/internal/logger"
	"streamscout/pkg/checker"
	"streamscout/pkg/playlist"
	"streamscout/pkg/schedule"
	"streamscout/pkg/sites"
)

// ErrRunning is returned when a run is requested while another is in progress.
var ErrRunning = errors.New("a run is already in progress")

// ProxyRefresher is implemented by *manager.Manager.
type ProxyRefresher interface {
	Refresh(ctx context.Context) error
	Count() int
}

// StreamChecker is implemented by *checker.DBStreamChecker and PlainChecker.
type StreamChecker interface {
	CheckWithCaching(ctx context.Context, targets []checker.StreamTarget) []checker.StreamResult
	Record(ctx context.Context, results []checker.StreamResult)
}

// PlainChecker checks every stream on every run, for setups without a database.
type PlainChecker struct {
	*checker.StreamChecker
}

func (p PlainChecker) CheckWithCaching(ctx context.Context, targets []checker.StreamTarget) []checker.StreamResult {
	return p.CheckStreams(ctx, targets)
}

func (p PlainChecker) Record(context.Context, []checker.StreamResult) {}

type Config struct {
	Workers      int
	WindowBefore time.Duration
	WindowAfter  time.Duration
	OutputDir    string
	M3UFile      string
	JSONFile     string
	Playlist     playlist.Options
	Interval     time.Duration
	Timeout      time.Duration
	MaxAge       time.Duration
}

// Deps are the collaborators of a run. Only Sites is required.
type Deps struct {
	Sites   sites.Site
	Proxies ProxyRefresher
	DB      *database.Service
	Checker StreamChecker
}

type Result struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Events    int           `json:"events"`
	Streams   int           `json:"streams"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Written   bool          `json:"written"`
	Error     string        `json:"error,omitempty"`
}

// Runner executes scrape runs and keeps the entries of the last run that
// produced streams.
type Runner struct {
	deps   Deps
	config Config

	runMu   sync.Mutex
	mu      sync.RWMutex
	last    *Result
	entries []playlist.Entry

	ticker *time.Ticker
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now    func() time.Time
	logger *logger.Logger
}

func New(deps Deps, config Config) *Runner {
	if config.Workers <= 0 {
		config.Workers = 8
	}
	if config.M3UFile == "" {
		config.M3UFile = "playlist.m3u8"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		deps:   deps,
		config: config,
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
		logger: logger.New("runner"),
	}
}

type resolved struct {
	event  sites.Event
	stream *sites.Stream
	err    error
}

// Run executes one pass: proxies, events, time window, resolution, stream
// check, outputs and run record. A run without streams leaves existing
// outputs in place.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if !r.runMu.TryLock() {
		return nil, ErrRunning
	}
	defer r.runMu.Unlock()
	return r.runLocked(ctx)
}

// runLocked is Run for a caller that already holds runMu.
func (r *Runner) runLocked(ctx context.Context) (*Result, error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	start := r.now()
	result := &Result{StartedAt: start, RunID: logger.GenerateID()}
	if r.deps.DB != nil {
		if id, err := r.deps.DB.StartRun(ctx); err == nil {
			result.RunID = id
		} else {
			r.logger.Warn(result.RunID, "Failed to record run start: %v", err)
		}
	}
	id := result.RunID[:min(8, len(result.RunID))]

	err := r.run(ctx, id, result)
	result.Duration = r.now().Sub(start)
	if err != nil {
		result.Error = err.Error()
	}

	if r.deps.DB != nil {
		finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		summary := database.RunSummary{Events: result.Events, Streams: result.Streams, Failed: result.Failed, Err: err}
		if ferr := r.deps.DB.FinishRun(finishCtx, result.RunID, summary); ferr != nil {
			r.logger.Warn(id, "Failed to record run end: %v", ferr)
		}
		if r.config.MaxAge > 0 {
			if cerr := r.deps.DB.Cleanup(finishCtx, r.config.MaxAge); cerr != nil {
				r.logger.Warn(id, "Cleanup failed: %v", cerr)
			}
		}
		cancel()
	}

	r.mu.Lock()
	r.last = result
	r.mu.Unlock()

	r.logger.Info(id, "Run finished in %v: %d events, %d streams, %d failed", result.Duration.Round(time.Millisecond), result.Events, result.Streams, result.Failed)
	return result, err
}

func (r *Runner) run(ctx context.Context, id string, result *Result) error {
	if r.deps.Proxies != nil && r.deps.Proxies.Count() == 0 {
		if err := r.deps.Proxies.Refresh(ctx); err != nil {
			r.logger.Warn(id, "Proxy refresh failed, continuing: %v", err)
		}
	}

	events, err := r.deps.Sites.Events(ctx)
	if err != nil {
		if len(events) == 0 {
			return fmt.Errorf("no events: %w", err)
		}
		r.logger.Warn(id, "Some sites failed: %v", err)
	}

	now := r.now()
	var current []sites.Event
	for _, event := range events {
		if schedule.InWindow(event.Start, now, r.config.WindowBefore, r.config.WindowAfter) {
			current = append(current, event)
		}
	}
	result.Events = len(current)
	r.logger.Info(id, "%d of %d events inside the time window", len(current), len(events))

	resolvedEvents, err := r.resolveAll(ctx, current)
	if err != nil {
		return err
	}

	var entries []playlist.Entry
	var failures error
	for _, item := range resolvedEvents {
		if item.err != nil {
			result.Failed++
			failures = multierr.Append(failures, item.err)
			continue
		}
		entries = append(entries, entryFor(item.event, item.stream))
	}
	if failures != nil {
		r.logger.Debug(id, "Resolution failures: %v", failures)
	}

	// Cached checks compare against the stored URL, so they run before the
	// upsert replaces it; results are recorded once the rows exist.
	checks := r.check(ctx, entries)
	r.persist(ctx, id, resolvedEvents)
	if checks != nil {
		r.deps.Checker.Record(ctx, checks)
		entries = playable(entries, checks)
	}
	entries = playlist.Prepare(entries)
	result.Streams = len(entries)

	if len(entries) == 0 {
		r.logger.Warn(id, "No streams found, keeping existing outputs")
		return nil
	}

	if err := r.write(entries); err != nil {
		return err
	}
	result.Written = true

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
	return nil
}

// resolveAll resolves events on a bounded ants pool, keeping input order.
func (r *Runner) resolveAll(ctx context.Context, events []sites.Event) ([]resolved, error) {
	results := make([]resolved, len(events))
	if len(events) == 0 {
		return results, nil
	}

	pool, err := ants.NewPool(min(r.config.Workers, len(events)))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, event := range events {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				results[i] = resolved{event: event, err: ctx.Err()}
				return
			}
			stream, err := r.deps.Sites.Resolve(ctx, event)
			results[i] = resolved{event: event, stream: stream, err: err}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			results[i] = resolved{event: event, err: err}
		}
	}
	wg.Wait()
	return results, nil
}

func entryFor(event sites.Event, stream *sites.Stream) playlist.Entry {
	return playlist.Entry{
		Slug:      event.Slug,
		Title:     event.Title,
		Group:     event.Group,
		Logo:      event.Logo,
		URL:       stream.URL,
		Referer:   stream.Referer,
		Origin:    stream.Origin,
		UserAgent: stream.UserAgent,
		Start:     event.Start,
	}
}

func (r *Runner) persist(ctx context.Context, id string, items []resolved) {
	if r.deps.DB == nil {
		return
	}
	stored := 0
	for _, item := range items {
		if item.err != nil {
			continue
		}
		_, err := r.deps.DB.UpsertStream(ctx, database.StreamRecord{
			Slug:      item.event.Slug,
			Source:    item.event.Site,
			Title:     item.event.Title,
			Group:     item.event.Group,
			Logo:      item.event.Logo,
			URL:       item.stream.URL,
			Referer:   item.stream.Referer,
			Origin:    item.stream.Origin,
			UserAgent: item.stream.UserAgent,
			StartAt:   item.event.Start,
		})
		if err != nil {
			r.logger.Warn(id, "%v", err)
			continue
		}
		stored++
	}
	r.logger.Debug(id, "Stored %d streams", stored)
}

// check returns one result per entry, or nil without a checker.
func (r *Runner) check(ctx context.Context, entries []playlist.Entry) []checker.StreamResult {
	if r.deps.Checker == nil || len(entries) == 0 {
		return nil
	}

	targets := make([]checker.StreamTarget, len(entries))
	for i, entry := range entries {
		targets[i] = checker.StreamTarget{
			Slug:      entry.Slug,
			URL:       entry.URL,
			Referer:   entry.Referer,
			Origin:    entry.Origin,
			UserAgent: entry.UserAgent,
		}
	}
	return r.deps.Checker.CheckWithCaching(ctx, targets)
}

func playable(entries []playlist.Entry, results []checker.StreamResult) []playlist.Entry {
	var kept []playlist.Entry
	for i, result := range results {
		if result.Status == checker.StatusHealthy {
			kept = append(kept, entries[i])
		}
	}
	return kept
}

func (r *Runner) write(entries []playlist.Entry) error {
	m3uPath := filepath.Join(r.config.OutputDir, r.config.M3UFile)
	if err := playlist.SaveFile(m3uPath, func(w io.Writer) error {
		return playlist.WriteM3U(w, entries, r.config.Playlist)
	}); err != nil {
		return fmt.Errorf("failed to write %s: %w", m3uPath, err)
	}

	if r.config.JSONFile == "" {
		return nil
	}
	jsonPath := filepath.Join(r.config.OutputDir, r.config.JSONFile)
	if err := playlist.SaveFile(jsonPath, func(w io.Writer) error {
		return playlist.WriteJSON(w, entries)
	}); err != nil {
		return fmt.Errorf("failed to write %s: %w", jsonPath, err)
	}
	return nil
}

// Start runs immediately and then every config.Interval until Stop.
func (r *Runner) Start() error {
	if r.config.Interval <= 0 {
		return fmt.Errorf("invalid run interval %v", r.config.Interval)
	}

	r.logger.InfoBg("Starting runner, interval %v", r.config.Interval)
	r.ticker = time.NewTicker(r.config.Interval)
	r.wg.Add(1)
	go r.loop()
	return nil
}

func (r *Runner) Stop() {
	r.logger.InfoBg("Stopping runner...")
	if r.ticker != nil {
		r.ticker.Stop()
	}
	r.cancel()
	r.wg.Wait()
	r.logger.InfoBg("Runner stopped")
}

// Trigger starts a run in the background. It reports false when a run is
// already in progress.
func (r *Runner) Trigger() bool {
	if !r.runMu.TryLock() {
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.runMu.Unlock()
		if _, err := r.runLocked(r.ctx); err != nil {
			r.logger.ErrorBg("Triggered run failed: %v", err)
		}
	}()
	return true
}

func (r *Runner) loop() {
	defer r.wg.Done()

	r.runScheduled()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.ticker.C:
			r.runScheduled()
		}
	}
}

func (r *Runner) runScheduled() {
	if _, err := r.Run(r.ctx); err != nil {
		if errors.Is(err, ErrRunning) {
			r.logger.InfoBg("Skipping scheduled run, previous run still in progress")
			return
		}
		r.logger.ErrorBg("Scheduled run failed: %v", err)
	}
}

// Last returns the result of the most recent run, or nil.
func (r *Runner) Last() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	last := *r.last
	return &last
}

// Entries returns the playlist of the last run that produced streams.
func (r *Runner) Entries() []playlist.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]playlist.Entry(nil), r.entries...)
}

// PlaylistOptions are the options outputs are rendered with.
func (r *Runner) PlaylistOptions() playlist.Options {
	return r.config.Playlist
}
