package checker

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grafov/m3u8"
	"github.com/panjf2000/ants/v2"

	"streamscout/internal/logger"
)

// maxManifestSize caps how much of a manifest is read; real manifests are a few KB.
const maxManifestSize = 2 << 20

// StreamTarget is one resolved stream plus the headers a player must send.
type StreamTarget struct {
	Slug      string
	URL       string
	Referer   string
	Origin    string
	UserAgent string
}

type StreamResult struct {
	Target       StreamTarget
	Status       Status
	Kind         string // master, media or dash
	Variants     int
	Segments     int
	ResponseTime time.Duration
	Error        error
	CheckedAt    time.Time
	Cached       bool
}

// StreamChecker fetches candidate manifests and validates that they parse.
type StreamChecker struct {
	client     *http.Client
	maxWorkers int
	userAgent  string
	logger     *logger.Logger
}

func NewStreamChecker(timeout time.Duration, maxWorkers int, userAgent string) *StreamChecker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	return &StreamChecker{
		client:     &http.Client{Timeout: timeout},
		maxWorkers: maxWorkers,
		userAgent:  userAgent,
		logger:     logger.New("streams"),
	}
}

func (c *StreamChecker) CheckStream(ctx context.Context, target StreamTarget) StreamResult {
	start := time.Now()
	result := StreamResult{Target: target, CheckedAt: start}

	body, err := c.fetchManifest(ctx, target)
	result.ResponseTime = time.Since(start)
	if err != nil {
		result.Status = classifyError(err)
		result.Error = err
		return result
	}

	if isDASH(target.URL, body) {
		result.Kind = "dash"
		result.Status = StatusHealthy
		return result
	}

	playlist, listType, err := m3u8.DecodeFrom(bufio.NewReader(bytes.NewReader(body)), false)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = fmt.Errorf("invalid manifest: %w", err)
		return result
	}

	switch listType {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		result.Kind = "master"
		for _, variant := range master.Variants {
			if variant != nil {
				result.Variants++
			}
		}
		if result.Variants == 0 {
			result.Status = StatusUnhealthy
			result.Error = fmt.Errorf("master playlist has no variants")
			return result
		}
	case m3u8.MEDIA:
		media := playlist.(*m3u8.MediaPlaylist)
		result.Kind = "media"
		result.Segments = int(media.Count())
	}

	result.Status = StatusHealthy
	return result
}

// CheckStreams checks targets on an ants pool of maxWorkers, preserving input
// order in the result.
func (c *StreamChecker) CheckStreams(ctx context.Context, targets []StreamTarget) []StreamResult {
	results := make([]StreamResult, len(targets))
	if len(targets) == 0 {
		return results
	}

	pool, err := ants.NewPool(min(c.maxWorkers, len(targets)))
	if err != nil {
		c.logger.ErrorBg("Failed to create worker pool: %v", err)
		for i, target := range targets {
			results[i] = StreamResult{Target: target, Status: StatusError, Error: err, CheckedAt: time.Now()}
		}
		return results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				results[i] = StreamResult{Target: target, Status: StatusTimeout, Error: ctx.Err(), CheckedAt: time.Now()}
				return
			}
			results[i] = c.CheckStream(ctx, target)
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			results[i] = StreamResult{Target: target, Status: StatusError, Error: err, CheckedAt: time.Now()}
		}
	}
	wg.Wait()

	healthy := 0
	for _, result := range results {
		if result.Status == StatusHealthy {
			healthy++
		}
	}
	c.logger.InfoBg("Checked %d streams, %d playable", len(results), healthy)

	return results
}

func (c *StreamChecker) fetchManifest(ctx context.Context, target StreamTarget) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return nil, err
	}

	userAgent := target.UserAgent
	if userAgent == "" {
		userAgent = c.userAgent
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if target.Referer != "" {
		req.Header.Set("Referer", target.Referer)
	}
	if target.Origin != "" {
		req.Header.Set("Origin", target.Origin)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
}

func isDASH(url string, body []byte) bool {
	if strings.Contains(strings.ToLower(url), ".mpd") {
		return bytes.Contains(body, []byte("<MPD"))
	}
	return false
}

func FilterPlayable(results []StreamResult) []StreamTarget {
	var playable []StreamTarget
	for _, result := range results {
		if result.Status == StatusHealthy {
			playable = append(playable, result.Target)
		}
	}
	return playable
}
