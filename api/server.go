// Package api exposes the crawl pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"rental-parser/models"
	"rental-parser/pipeline"
	"rental-parser/storage"
	"rental-parser/utils"
)

// CrawlRunner runs one source's crawl to completion.
type CrawlRunner interface {
	RunCrawl(ctx context.Context, source string) *models.CrawlResult
}

// BrowserStatus reports whether the shared browser is up.
type BrowserStatus interface {
	Connected() bool
}

// Server is the HTTP control surface.
type Server struct {
	runner  CrawlRunner
	stats   storage.StatsSource
	browser BrowserStatus
	logger  *utils.Logger
	now     func() time.Time
}

// NewServer creates a Server.
func NewServer(runner CrawlRunner, stats storage.StatsSource, browser BrowserStatus, logger *utils.Logger) *Server {
	return &Server{runner: runner, stats: stats, browser: browser, logger: logger, now: time.Now}
}

// Router returns the mux with every route registered.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/parse/{source}", s.handleParse).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.Use(s.logRequests)
	return r
}

type parseResponse struct {
	Found    int    `json:"found"`
	New      int    `json:"new"`
	Updated  int    `json:"updated"`
	Duration string `json:"duration"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Duration string `json:"duration,omitempty"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Browser   string `json:"browser"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]

	// A dropped client connection does not abort a crawl in flight.
	res := s.runner.RunCrawl(context.WithoutCancel(r.Context()), source)

	if res.Err != nil {
		status := http.StatusInternalServerError
		if errors.Is(res.Err, pipeline.ErrInvalidSource) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: res.Err.Error(), Duration: res.DurationString()})
		return
	}

	writeJSON(w, http.StatusOK, parseResponse{
		Found:    res.Found,
		New:      res.New,
		Updated:  res.Updated,
		Duration: res.DurationString(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "not initialized"
	if s.browser != nil && s.browser.Connected() {
		status = "connected"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Browser:   status,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	body, err := s.stats.Stats(r.Context())
	if err != nil {
		s.logger.Error("[api] Stats failed: %v", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("[api] %s %s (%v)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
