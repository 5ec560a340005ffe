package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"retail-pos/auth"
	models "retail-pos/model"
	"retail-pos/obs"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
)

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

type statusRecorder struct {
	h  http.ResponseWriter
	st int
	n  int
}

func (w *statusRecorder) Header() http.Header { return w.h.Header() }
func (w *statusRecorder) WriteHeader(code int) {
	w.st = code
	w.h.WriteHeader(code)
}
func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.h.Write(b)
	w.n += n
	return n, err
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{h: w, st: 200}
		next.ServeHTTP(sr, r)
		lat := time.Since(start)
		obs.Logger.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.st,
			"bytes", sr.n,
			"latency_ms", float64(lat.Microseconds())/1000.0,
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// WithTracing opens a server span per request. Health endpoints are skipped.
func WithTracing(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, obs.ServiceName,
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/readyz"
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	)
}

// Wrap applies the standard middleware chain, outermost first.
func Wrap(h http.Handler) http.Handler {
	return WithRequestID(WithLogging(WithTracing(h)))
}

func bearerToken(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

// authenticate parses the bearer token if one is present. A missing token
// yields nil claims and no error.
func (h *Handler) authenticate(r *http.Request) (*auth.Claims, error) {
	tok := bearerToken(r)
	if tok == "" {
		return nil, nil
	}
	return h.svc.Authenticate(tok)
}

// protect requires a valid token carrying a role that allows need.
func (h *Handler) protect(need models.Role, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.authenticate(r)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if claims == nil {
			writeErr(w, r, models.ErrUnauthorized)
			return
		}
		if !auth.Allows(claims.Role, need) {
			writeErr(w, r, models.ErrForbidden)
			return
		}
		fn(w, r)
	}
}
