package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"streamscout/internal/database"
	"streamscout/internal/logger"
	"streamscout/pkg/manager"
	"streamscout/pkg/playlist"
	"streamscout/pkg/runner"
)

// Source is implemented by *runner.Runner.
type Source interface {
	Entries() []playlist.Entry
	Last() *runner.Result
	Trigger() bool
}

type Server struct {
	source  Source
	proxies manager.ProxyManager
	db      *database.Service
	server  *http.Server
	config  *Config
	stats   Stats
	statsMu sync.RWMutex
	logger  *logger.Logger
}

type Config struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Playlist     playlist.Options
}

type Stats struct {
	RequestsHandled int64 `json:"requests_handled"`
	FailedRequests  int64 `json:"failed_requests"`
}

// NewServer serves the playlist of source. proxies and db may be nil.
func NewServer(source Source, proxies manager.ProxyManager, db *database.Service, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	return &Server{
		source:  source,
		proxies: proxies,
		db:      db,
		config:  config,
		logger:  logger.New("server"),
	}
}

func DefaultConfig() *Config {
	return &Config{
		ListenAddr:   ":8090",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		Playlist:     playlist.Options{HeaderStyle: playlist.HeaderStylePipe},
	}
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:           s.config.ListenAddr,
		Handler:        s,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	s.logger.InfoBg("Listening on %s", s.config.ListenAddr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.DebugBg("%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

	switch r.URL.Path {
	case "/playlist.m3u8", "/playlist.m3u":
		s.allow(w, r, http.MethodGet, s.handlePlaylist)
	case "/streams.json":
		s.allow(w, r, http.MethodGet, s.handleStreams)
	case "/stats":
		s.allow(w, r, http.MethodGet, s.handleStats)
	case "/health":
		s.allow(w, r, http.MethodGet, s.handleHealth)
	case "/refresh":
		s.allow(w, r, http.MethodPost, s.handleRefresh)
	default:
		s.incrementFailedRequests()
		http.NotFound(w, r)
	}
}

func (s *Server) allow(w http.ResponseWriter, r *http.Request, method string, handler http.HandlerFunc) {
	if r.Method != method && !(method == http.MethodGet && r.Method == http.MethodHead) {
		s.incrementFailedRequests()
		w.Header().Set("Allow", method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	handler(w, r)
	s.incrementRequestsHandled()
}

func (s *Server) handlePlaylist(w http.ResponseWriter, _ *http.Request) {
	entries := s.source.Entries()
	if len(entries) == 0 {
		http.Error(w, "No streams yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	if err := playlist.WriteM3U(w, entries, s.config.Playlist); err != nil {
		s.logger.ErrorBg("Failed to write playlist: %v", err)
	}
}

func (s *Server) handleStreams(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := playlist.WriteJSON(w, s.source.Entries()); err != nil {
		s.logger.ErrorBg("Failed to write streams: %v", err)
	}
}

type statsResponse struct {
	LastRun  *runner.Result  `json:"last_run"`
	Streams  int             `json:"streams"`
	Proxies  *manager.Stats  `json:"proxies,omitempty"`
	Database *database.Stats `json:"database,omitempty"`
	Server   Stats           `json:"server"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	response := statsResponse{
		LastRun: s.source.Last(),
		Streams: len(s.source.Entries()),
		Server:  s.getStats(),
	}
	if s.proxies != nil {
		proxyStats := s.proxies.Stats()
		response.Proxies = &proxyStats
	}
	if s.db != nil {
		if dbStats, err := s.db.Stats(r.Context()); err == nil {
			response.Database = &dbStats
		} else {
			s.logger.WarnBg("Failed to read database stats: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, &response)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	count := len(s.source.Entries())
	if count == 0 {
		http.Error(w, "No streams available", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "streams": count})
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if !s.source.Trigger() {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "running"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.Encode(value)
}

func (s *Server) getStats() Stats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

func (s *Server) incrementRequestsHandled() {
	s.statsMu.Lock()
	s.stats.RequestsHandled++
	s.statsMu.Unlock()
}

func (s *Server) incrementFailedRequests() {
	s.statsMu.Lock()
	s.stats.FailedRequests++
	s.statsMu.Unlock()
}
