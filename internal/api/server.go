// Package api exposes the download service over HTTP: format listing,
// download dispatch, progress polling and file retrieval, plus the small
// embedded web page that drives them.
package api

import (
	"context"
	"embed"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/config"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/extractor"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/logutils"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/ratelimit"
	"github.com/AhmedFox2/Youtube-Donwloader-API/internal/task"
	"github.com/google/uuid"
)

const jsonContentType = "application/json"

const (
	indexPath         = "/"
	formatsPath       = "/formats"
	startDownloadPath = "/start_download"
	progressPath      = "/progress"
	filePath          = "/file"
	healthPath        = "/healthz"
)

//go:embed static/index.html
var staticFS embed.FS

// TaskStore is the read side of the task registry the API polls.
type TaskStore interface {
	Get(id string) (task.Task, bool)
	Len() int
}

// Dispatcher accepts a download request and returns the task id.
type Dispatcher interface {
	Dispatch(rawURL, formatID string) (string, error)
}

// Server runs the downloader REST API.
type Server struct {
	cfg        *config.Config
	tasks      TaskStore
	dispatcher Dispatcher
	extractor  extractor.Extractor
	limiter    *ratelimit.Limiter
	srv        *http.Server
}

func NewServer(cfg *config.Config, tasks TaskStore, dispatcher Dispatcher, ex extractor.Extractor) *Server {
	s := &Server{
		cfg:        cfg,
		tasks:      tasks,
		dispatcher: dispatcher,
		extractor:  ex,
		limiter:    ratelimit.New(cfg.APISettings.RateLimit, cfg.APISettings.RateBurst),
	}
	mux := http.NewServeMux()

	mux.HandleFunc(indexPath, s.chain(s.indexHandler))
	mux.HandleFunc(formatsPath, s.chain(s.formatsHandler))
	mux.HandleFunc(startDownloadPath, s.chain(s.startDownloadHandler))
	mux.HandleFunc(progressPath, s.chain(s.progressHandler))
	mux.HandleFunc(filePath, s.chain(s.fileHandler))
	mux.HandleFunc(healthPath, s.chain(s.healthHandler))

	// No WriteTimeout: GET /file streams media of arbitrary size.
	s.srv = &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// chain runs requestID then rate limiting then the handler.
func (s *Server) chain(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx = WithRequestID(ctx, requestID)
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(ctx)

		if !s.limiter.Allow(clientIP(r)) {
			logutils.Log.WithFields(map[string]any{
				"request_id":  requestID,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
			}).Warn("Request rate limited")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		logutils.Log.WithFields(map[string]any{
			"request_id": requestID,
			"path":       r.URL.Path,
			"method":     r.Method,
		}).Debug("API request")
		h(w, r)
	}
}

// clientIP keys the rate limiter by remote host, ignoring the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Start listens and serves. Blocks until Shutdown is called.
func (s *Server) Start() error {
	logutils.Log.WithField("addr", s.srv.Addr).Info("API server starting")
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logutils.Log.WithError(err).Warn("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
