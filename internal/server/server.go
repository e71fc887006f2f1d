// Package server exposes the transcript host over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"transcripthost/internal/domain"
	"transcripthost/internal/metrics"
	"transcripthost/internal/service"

	"github.com/gorilla/mux"
)

const (
	maxJSONBody       = 1 << 20
	multipartOverhead = 1 << 20
	maxMultipartMem   = 8 << 20
)

// Backend is the subset of the service the HTTP layer calls.
type Backend interface {
	GenerateTranscript(ctx context.Context, req service.GenerateRequest) (*service.GenerateResult, error)
	UploadTranscript(ctx context.Context, req service.UploadRequest) (*domain.TranscriptRecord, error)
	UploadFile(ctx context.Context, originalName, contentType string, r io.Reader) (*service.FileInfo, error)
	ListFiles(ctx context.Context) ([]service.ListedFile, error)
	ListTranscripts(ctx context.Context) ([]domain.TranscriptRecord, error)
	GetTranscript(ctx context.Context, id string) (*domain.TranscriptRecord, error)
	OpenFile(ctx context.Context, name string) (io.ReadSeekCloser, domain.StoredFile, error)
	OpenTranscript(ctx context.Context, name string) (io.ReadSeekCloser, domain.StoredFile, error)
}

// AuthConfig enables HTTP basic auth on the write endpoints.
// PasswordHash is either a bcrypt hash or a hex SHA-256 digest.
type AuthConfig struct {
	Enabled      bool
	Username     string
	PasswordHash string
}

type Config struct {
	Host    string
	Port    int
	Backend Backend
	Logger  *slog.Logger
	Version string

	CORSOrigins    []string
	Auth           AuthConfig
	GenerateSecret string // HMAC secret for /api/transcripts/generate; empty disables the check
	MaxUploadBytes int64

	MetricsEnabled bool
	MetricsPath    string

	// Events, when set, is served at /api/events (websocket live feed).
	Events http.Handler
}

// Server is the HTTP front end.
type Server struct {
	host    string
	port    int
	backend Backend
	logger  *slog.Logger
	version string

	corsOrigins    []string
	auth           AuthConfig
	generateSecret string
	maxUploadBytes int64

	handler http.Handler
	server  *http.Server
}

func New(cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 * 1024 * 1024
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{
		host:           cfg.Host,
		port:           cfg.Port,
		backend:        cfg.Backend,
		logger:         cfg.Logger,
		version:        cfg.Version,
		corsOrigins:    cfg.CORSOrigins,
		auth:           cfg.Auth,
		generateSecret: cfg.GenerateSecret,
		maxUploadBytes: cfg.MaxUploadBytes,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	r.HandleFunc("/api/upload", s.requireAuth(s.handleUpload)).Methods(http.MethodPost)
	r.HandleFunc("/api/files", s.handleListFiles).Methods(http.MethodGet)

	r.HandleFunc("/api/transcripts/upload", s.requireAuth(s.handleTranscriptUpload)).Methods(http.MethodPost)
	r.HandleFunc("/api/transcripts/generate", s.requireAuth(s.handleGenerate)).Methods(http.MethodPost)
	r.HandleFunc("/api/transcripts", s.handleListTranscripts).Methods(http.MethodGet)
	r.HandleFunc("/api/transcripts/{id}", s.handleGetTranscript).Methods(http.MethodGet)

	r.HandleFunc("/uploads/{name}", s.handleDownload(cfg.Backend.OpenFile)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/transcripts/{name}", s.handleDownload(cfg.Backend.OpenTranscript)).Methods(http.MethodGet, http.MethodHead)

	if cfg.Events != nil {
		r.HandleFunc("/api/events", s.requireAuth(cfg.Events.ServeHTTP)).Methods(http.MethodGet)
	}
	if cfg.MetricsEnabled {
		r.Handle(cfg.MetricsPath, metrics.Collector.Handler()).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeError(rw, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeError(rw, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Outside the router so preflights and 404s pass through them too.
	s.handler = s.recoverPanics(s.logRequests(securityHeaders(s.cors(r))))
	return s
}

// Handler returns the complete handler chain (used by tests and embedding).
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("http server starting", "addr", "http://"+s.Addr(), "auth", s.auth.Enabled)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
