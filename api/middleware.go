package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/CreativeUnicorns/userrecords"
)

// LoggerMiddleware logs every request once it is served. Server errors are
// logged at error level and client errors at warn level.
func LoggerMiddleware(logger userrecords.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			t0 := time.Now()
			defer func() {
				log := logger.Info
				switch status := ww.Status(); {
				case status >= http.StatusInternalServerError:
					log = logger.Error
				case status >= http.StatusBadRequest:
					log = logger.Warn
				}
				log("served request",
					"method", r.Method,
					"path", r.URL.Path,
					"query", r.URL.RawQuery,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"latency_ms", float64(time.Since(t0).Microseconds())/1000.0,
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
