// Package server exposes the cache over HTTP: the administrative API, the
// cached generation endpoint, Prometheus metrics and a health check.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/academy-ai/aicache/pkg/admin"
	"github.com/academy-ai/aicache/pkg/cache"
	"github.com/academy-ai/aicache/pkg/generator"
	"github.com/academy-ai/aicache/pkg/params"
)

// maxParamsBody bounds the parameters accepted by the generation endpoint.
const maxParamsBody = 1 << 20

// Computer binds an AI-generation call for one invocation.
type Computer interface {
	ComputeFunc(functionName string, p params.Value) cache.ComputeFunc
}

// Options wires a Server. Gatherer and Logger may be nil.
type Options struct {
	Listen    string
	Service   *cache.Service
	Admin     *admin.Admin
	Generator Computer
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

// Server is the aicache HTTP server.
type Server struct {
	listen string
	svc    *cache.Service
	admin  *admin.Admin
	gen    Computer
	logger *zap.Logger
	mux    *http.ServeMux
}

// New creates a Server with all routes registered.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		listen: opts.Listen,
		svc:    opts.Service,
		admin:  opts.Admin,
		gen:    opts.Generator,
		logger: logger.Named("server"),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/cache/stats", s.handleStats)
	s.mux.HandleFunc("POST /api/cache/clear", s.handleClearAll)
	s.mux.HandleFunc("POST /api/cache/functions/{function}/clear", s.handleClearFunction)
	s.mux.HandleFunc("POST /api/cache/clean-expired", s.handleCleanExpired)
	s.mux.HandleFunc("POST /api/cache/warmup", s.handleWarmup)
	s.mux.HandleFunc("POST /api/generate/{function}", s.handleGenerate)
	if opts.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("aicache listening", zap.String("addr", s.listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return "http:" + a
	}
	return "http"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admin.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	res, err := s.admin.ClearAll(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleClearFunction(w http.ResponseWriter, r *http.Request) {
	res, err := s.admin.ClearFunction(r.Context(), actor(r), r.PathValue("function"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCleanExpired(w http.ResponseWriter, r *http.Request) {
	res, err := s.admin.CleanExpired(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleWarmup(w http.ResponseWriter, r *http.Request) {
	res, err := s.admin.Warmup(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	fn := r.PathValue("function")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxParamsBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("parameters exceed %d bytes", tooLarge.Limit))
			return
		}
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	p := params.Null()
	if len(body) > 0 {
		if err := json.Unmarshal(body, &p); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid parameters: "+err.Error())
			return
		}
	}

	payload, hit, err := s.svc.GetOrCompute(r.Context(), fn, p, s.gen.ComputeFunc(fn, p))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, cache.ErrInvalidParameters):
		code = http.StatusBadRequest
	case errors.Is(err, cache.ErrStoreUnavailable), errors.Is(err, generator.ErrNoEndpoints):
		code = http.StatusServiceUnavailable
	case errors.Is(err, generator.ErrUpstream):
		code = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	if code >= 500 {
		s.logger.Warn("request failed", zap.Int("status", code), zap.Error(err))
	}
	writeJSONError(w, code, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	var b errorBody
	b.Error.Message = message
	b.Error.Type = "aicache_error"
	b.Error.Code = code
	writeJSON(w, code, b)
}
