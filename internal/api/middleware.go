package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs one line per request. Image and docs fetches log at
// debug since viewers poll them; server errors log at warn.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		switch {
		case ww.Status() >= http.StatusInternalServerError:
			level = slog.LevelWarn
		case r.Method == http.MethodGet && quietPath(r.URL.Path):
			level = slog.LevelDebug
		}
		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func quietPath(p string) bool {
	switch {
	case p == "/docs", strings.HasPrefix(p, "/openapi"):
		return true
	case strings.HasSuffix(p, "/image"), strings.HasSuffix(p, "/overlay"), strings.HasSuffix(p, "/view"):
		return true
	}
	return p == "/api/v1/notifications" || p == "/api/v1/pending"
}
