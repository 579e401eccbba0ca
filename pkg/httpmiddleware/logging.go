package httpmiddleware

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InjectLogger sets lg as the base logger of every request context.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(zctx.Base(r.Context(), lg)))
		})
	}
}

// routePattern returns the chi pattern that served r, available once the
// router has dispatched the request.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}

// LogRequests logs one line per request with its route, status and duration.
// Register it with chi's Use so the route pattern is resolved.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		lg := zctx.From(r.Context())
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("route", routePattern(r)),
			zap.Int("status", m.Code),
			zap.Duration("duration", m.Duration),
			zap.Int64("bytes", m.Written),
		}
		switch {
		case m.Code >= http.StatusInternalServerError:
			lg.Error("Request", fields...)
		case m.Code >= http.StatusBadRequest:
			lg.Warn("Request", fields...)
		default:
			lg.Info("Request", fields...)
		}
	})
}

// Labeler adds the chi route pattern to the otelhttp metrics of a request.
// Register it with chi's Use, inside Instrument.
func Labeler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if l, ok := otelhttp.LabelerFromContext(r.Context()); ok {
			l.Add(attribute.String("http.route", routePattern(r)))
		}
	})
}
