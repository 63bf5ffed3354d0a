package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"solstice/internal/observability/jsonlog"
)

type ctxKey string

const (
	requestIDKey    ctxKey = "request_id"
	RequestIDHeader        = "X-Request-Id"
)

// RequestIDFromContext returns request id if present.
func RequestIDFromContext(ctx context.Context) string {
	v := ctx.Value(requestIDKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func WithRequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get(RequestIDHeader)
			if rid == "" {
				rid = newRequestID()
			}
			ctx := context.WithValue(r.Context(), requestIDKey, rid)
			r = r.WithContext(ctx)
			w.Header().Set(RequestIDHeader, rid)
			next.ServeHTTP(w, r)
		})
	}
}

// Logging writes one http_request line per request and puts a logger
// carrying the request id into the request context.
func Logging(logger *jsonlog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = jsonlog.Discard()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			rid := RequestIDFromContext(r.Context())
			reqLogger := logger.With(map[string]any{"rid": rid})
			r = r.WithContext(jsonlog.NewContext(r.Context(), reqLogger))

			next.ServeHTTP(sw, r)

			logger.Info("http_request", map[string]any{
				"rid":    rid,
				"method": r.Method,
				"path":   r.URL.Path,
				"status": sw.status,
				"dur_ms": time.Since(start).Milliseconds(),
				"ua":     r.UserAgent(),
			})
		})
	}
}

func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CORS answers preflight requests and sets Access-Control-Allow-Origin for
// the allowed origins. "*" allows any origin, method and header.
func CORS(allowed []string) func(http.Handler) http.Handler {
	allowAll := slices.Contains(allowed, "*")

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !allowAll && !slices.Contains(allowed, origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if allowAll {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					h.Set("Access-Control-Allow-Headers", reqHeaders)
				} else {
					h.Set("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", RequestIDHeader}, ", "))
				}
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Instrument records request counts and latency in m. It must wrap the
// ServeMux directly: the route label comes from the pattern the mux sets on
// the request it is handed.
func Instrument(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			route := "unmatched"
			if _, path, ok := strings.Cut(r.Pattern, " "); ok {
				route = path
			} else if r.Pattern != "" {
				route = r.Pattern
			}
			m.requests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func newRequestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return hex.EncodeToString([]byte(time.Now().UTC().Format("20060102150405.000000000")))
	}
	return hex.EncodeToString(b[:])
}
