// Package api exposes the analysis pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/indexlegal/honoris/internal/apperr"
	"github.com/indexlegal/honoris/internal/config"
	"github.com/indexlegal/honoris/internal/model"
	"github.com/indexlegal/honoris/pkg/lawcrawler"
)

// Public error messages. Upstream detail only ever reaches the log.
const (
	msgTextRequired   = "Texto requerido"
	msgProcessing     = "Error procesando la solicitud."
	msgLawNotFound    = "Ley no encontrada"
	msgLawUnavailable = "Servicio de leyes no disponible"
	msgLawFailed      = "Error consultando la ley."
	msgTooMany        = "Demasiadas solicitudes, intente de nuevo."
	msgTimeout        = "Tiempo de espera agotado."
)

const maxBodyBytes = 64 << 10

// Analyzer runs one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*model.Analysis, error)
}

// Deps are the collaborators the router serves. Laws may be nil, in which
// case the law proxy answers 503.
type Deps struct {
	Analyzer Analyzer
	Laws     lawcrawler.Client
	Config   config.ServerConfig
}

type handler struct {
	analyzer Analyzer
	laws     lawcrawler.Client
}

// NewRouter builds the HTTP handler for the analysis API and the bundled front end.
func NewRouter(d Deps) http.Handler {
	h := &handler{analyzer: d.Analyzer, laws: d.Laws}
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if cfg.RequestTimeoutSecs > 0 {
			r.Use(requestDeadline(time.Duration(cfg.RequestTimeoutSecs) * time.Second))
		}
		r.With(rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)).Post("/analyze", h.analyze)
		r.Get("/law/{id}", h.law)
	})

	if dir := cfg.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		} else {
			zap.L().Warn("api: static directory unavailable, front end disabled", zap.String("dir", dir))
		}
	}

	return r
}

type analyzeRequest struct {
	Text *string `json:"text"`
}

func (h *handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil ||
		req.Text == nil || strings.TrimSpace(*req.Text) == "" {
		writeError(w, http.StatusBadRequest, msgTextRequired)
		return
	}

	analysis, err := h.analyzer.Analyze(r.Context(), *req.Text)
	if err != nil {
		status, msg := errorStatus(r.Context(), err)
		zap.L().Error("api: analyze failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("kind", apperr.KindOf(err).String()),
			zap.Int("status", status),
			zap.Error(err),
		)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// errorStatus maps an analysis failure to the status and message shown to
// clients. A request past its deadline answers 504 whatever the failure kind.
func errorStatus(ctx context.Context, err error) (int, string) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, msgTimeout
	}
	switch apperr.KindOf(err) {
	case apperr.KindEmptyInput:
		return http.StatusBadRequest, msgTextRequired
	default:
		return http.StatusInternalServerError, msgProcessing
	}
}

func (h *handler) law(w http.ResponseWriter, r *http.Request) {
	if h.laws == nil {
		writeError(w, http.StatusServiceUnavailable, msgLawUnavailable)
		return
	}

	id := chi.URLParam(r, "id")
	doc, err := h.laws.Law(r.Context(), id)
	if err != nil {
		var statusErr *lawcrawler.StatusError
		switch {
		case errors.Is(err, lawcrawler.ErrNotFound):
			writeError(w, http.StatusNotFound, msgLawNotFound)
		case errors.Is(r.Context().Err(), context.DeadlineExceeded):
			zap.L().Warn("api: law lookup timed out", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusGatewayTimeout, msgTimeout)
		case errors.As(err, &statusErr):
			zap.L().Warn("api: law lookup rejected", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusBadGateway, msgLawFailed)
		default:
			zap.L().Error("api: law lookup failed", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, msgLawFailed)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc) //nolint:errcheck
}

// requestDeadline bounds every request context by d. Handlers write their own
// response when the deadline passes, so nothing is written here.
func requestDeadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rateLimit rejects requests beyond rps with 429. Non-positive rps disables it.
func rateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, msgTooMany)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
