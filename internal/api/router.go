package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// WebDir serves the browser UI from / when set.
	WebDir string
}

func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/conversations", func(r chi.Router) {
		r.Get("/", h.ListConversations)
		r.Post("/", h.CreateConversation)
		r.Patch("/{id}", h.UpdateConversation)
		r.Delete("/{id}", h.DeleteConversation)
		r.Get("/{id}/messages", h.GetMessages)
		r.Post("/{id}/messages", h.SendMessage)
	})

	if cfg.WebDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.WebDir)))
	}

	return r
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", time.Since(start)),
					zap.String("requestID", chimiddleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
