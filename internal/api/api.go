// Package api exposes the resolution pipeline over HTTP.
//
// Routes:
//
//	POST /v1/resolve          {"text", "strategy", "explain"} -> symbols
//	POST /v1/transcribe       multipart "file" (+ "strategy") -> symbols
//	GET  /v1/history          newest records of the X-User-ID user
//	GET  /v1/history/{id}     one record
//	GET  /v1/videos/{id}      the clip for a sign id
//	POST /v1/playlist         {"symbols"} -> clip availability
//	GET  /v1/stream           WebSocket: one resolution per text frame
//
// The caller mounts health and metrics handlers with [WithHealth] and
// [WithMetricsHandler]. Authentication is left to a fronting proxy; the user
// id header is trusted as given.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/MrWong99/signcascade/internal/app"
	"github.com/MrWong99/signcascade/internal/cascade"
	"github.com/MrWong99/signcascade/internal/health"
	"github.com/MrWong99/signcascade/internal/history"
	"github.com/MrWong99/signcascade/internal/media"
	"github.com/MrWong99/signcascade/internal/observe"
	"github.com/MrWong99/signcascade/internal/textnorm"
	"github.com/MrWong99/signcascade/pkg/provider/stt"
	"github.com/MrWong99/signcascade/pkg/types"
)

// UserHeader carries the caller's user id.
const UserHeader = "X-User-ID"

// AnonymousUser is used when UserHeader is absent.
const AnonymousUser = "anonymous"

const (
	defaultMaxUploadBytes = 200 << 20
	defaultMaxTextBytes   = 1 << 20
)

// Pipeline is the subset of *app.App the handlers use.
type Pipeline interface {
	ResolveText(ctx context.Context, userID, text, strategy string) (*app.Result, error)
	Transcribe(ctx context.Context, userID string, audio stt.Audio, strategy string) (*app.Result, error)
	Explain(ctx context.Context, text, strategy string) ([]cascade.Trace, error)
	History(ctx context.Context, userID string, limit int) ([]history.Record, error)
	Record(ctx context.Context, id uuid.UUID) (history.Record, error)
	Video(ctx context.Context, id string) (*media.Video, error)
	Playlist(ctx context.Context, syms types.SymbolSequence) ([]media.Entry, error)
}

var _ Pipeline = (*app.App)(nil)

// Server routes HTTP requests to a Pipeline.
type Server struct {
	pipeline       Pipeline
	health         *health.Handler
	metrics        http.Handler
	observeMetrics *observe.Metrics
	maxUpload      int64
	maxText        int64
}

// Option configures a Server.
type Option func(*Server)

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithObserveMetrics records request durations into m instead of
// observe.DefaultMetrics.
func WithObserveMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.observeMetrics = m }
}

// WithLimits caps upload and JSON body sizes. Non-positive values keep the
// defaults.
func WithLimits(maxUpload, maxText int64) Option {
	return func(s *Server) {
		if maxUpload > 0 {
			s.maxUpload = maxUpload
		}
		if maxText > 0 {
			s.maxText = maxText
		}
	}
}

// New returns a Server for p.
func New(p Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline:  p,
		maxUpload: defaultMaxUploadBytes,
		maxText:   defaultMaxTextBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.observeMetrics == nil {
		s.observeMetrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/resolve", s.handleResolve)
	mux.HandleFunc("POST /v1/transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /v1/history", s.handleHistory)
	mux.HandleFunc("GET /v1/history/{id}", s.handleRecord)
	mux.HandleFunc("GET /v1/videos/{id}", s.handleVideo)
	mux.HandleFunc("POST /v1/playlist", s.handlePlaylist)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return observe.Middleware(s.observeMetrics)(mux)
}

func userID(r *http.Request) string {
	if u := r.Header.Get(UserHeader); u != "" {
		return u
	}
	return AnonymousUser
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var (
		normErr  *textnorm.NormalizationError
		embedErr *cascade.EmbeddingProviderError
		maxErr   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &normErr), errors.Is(err, cascade.ErrUnknownStrategy):
		return http.StatusBadRequest
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, stt.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, media.ErrNotFound), errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrSTTUnavailable), errors.Is(err, app.ErrMediaUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &embedErr):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	log := observe.Logger(r.Context())
	if code >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "status", code, "err", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "status", code, "err", err)
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "err", err)
	}
}
