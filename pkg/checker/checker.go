package checker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"streamscout/internal/logger"
	"streamscout/pkg/proxylist"
)

type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
	StatusTimeout
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	case StatusTimeout:
		return "timeout"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String. Unrecognised values map to StatusUnknown.
func ParseStatus(value string) Status {
	switch value {
	case "healthy":
		return StatusHealthy
	case "unhealthy":
		return StatusUnhealthy
	case "timeout":
		return StatusTimeout
	case "error":
		return StatusError
	default:
		return StatusUnknown
	}
}

type CheckResult struct {
	Proxy        proxylist.Proxy
	Status       Status
	ResponseTime time.Duration
	Error        error
	CheckedAt    time.Time
}

// Checker tests proxies by fetching a known URL through them.
type Checker struct {
	testURL    string
	timeout    time.Duration
	maxWorkers int
	userAgent  string
	logger     *logger.Logger
}

type Config struct {
	TestURL    string
	Timeout    time.Duration
	MaxWorkers int
	UserAgent  string
}

func NewChecker(config Config) *Checker {
	if config.TestURL == "" {
		config.TestURL = "http://icanhazip.com"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 20
	}

	return &Checker{
		testURL:    config.TestURL,
		timeout:    config.Timeout,
		maxWorkers: config.MaxWorkers,
		userAgent:  config.UserAgent,
		logger:     logger.New("checker"),
	}
}

func (c *Checker) CheckProxy(ctx context.Context, proxy proxylist.Proxy) CheckResult {
	start := time.Now()
	result := CheckResult{
		Proxy:     proxy,
		CheckedAt: start,
	}

	status, err := c.testProxy(ctx, proxy)
	result.Status = status
	result.Error = err
	result.ResponseTime = time.Since(start)

	return result
}

// CheckProxies checks every proxy on a bounded pool of workers. Results come
// back in completion order; proxies still queued when ctx ends are dropped.
func (c *Checker) CheckProxies(ctx context.Context, proxies []proxylist.Proxy) []CheckResult {
	if len(proxies) == 0 {
		return nil
	}

	workers := min(c.maxWorkers, len(proxies))

	proxyQueue := make(chan proxylist.Proxy, len(proxies))
	resultQueue := make(chan CheckResult, len(proxies))

	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for proxy := range proxyQueue {
				if ctx.Err() != nil {
					return
				}
				resultQueue <- c.CheckProxy(ctx, proxy)
			}
		}()
	}

	for _, proxy := range proxies {
		proxyQueue <- proxy
	}
	close(proxyQueue)

	go func() {
		wg.Wait()
		close(resultQueue)
	}()

	var results []CheckResult
	failureCounts := make(map[string]int)

	for result := range resultQueue {
		results = append(results, result)
		if result.Status == StatusHealthy {
			continue
		}

		errType := result.Status.String()
		failureCounts[errType]++
		if failureCounts[errType] <= 3 {
			c.logger.DebugBg("Proxy %s (%s) failed: %s (error: %v)",
				result.Proxy.Address(), result.Proxy.Type, errType, result.Error)
		}
	}

	c.logger.InfoBg("Checked %d proxies: %d healthy, failures %v", len(results), HealthyCount(results), failureCounts)
	return results
}

func (c *Checker) testProxy(ctx context.Context, proxy proxylist.Proxy) (Status, error) {
	transport, err := proxylist.Transport(proxy, c.timeout)
	if err != nil {
		return StatusError, err
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.testURL, nil)
	if err != nil {
		return StatusError, err
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/plain, application/json")
	req.Header.Set("Connection", "close")

	resp, err := client.Do(req)
	if err != nil {
		return classifyError(err), err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return StatusHealthy, nil
	}

	return StatusUnhealthy, fmt.Errorf("HTTP %d", resp.StatusCode)
}

func classifyError(err error) Status {
	if isTimeoutError(err) {
		return StatusTimeout
	}
	if isConnectionError(err) {
		return StatusUnhealthy
	}
	return StatusError
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "connection reset")
}

func FilterHealthy(results []CheckResult) []proxylist.Proxy {
	var healthy []proxylist.Proxy
	for _, result := range results {
		if result.Status == StatusHealthy {
			healthy = append(healthy, result.Proxy)
		}
	}
	return healthy
}

func HealthyCount(results []CheckResult) int {
	count := 0
	for _, result := range results {
		if result.Status == StatusHealthy {
			count++
		}
	}
	return count
}

func GroupByStatus(results []CheckResult) map[Status][]CheckResult {
	groups := make(map[Status][]CheckResult)
	for _, result := range results {
		groups[result.Status] = append(groups[result.Status], result)
	}
	return groups
}
