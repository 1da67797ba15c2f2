package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tabstat/internal/errors"
	"tabstat/internal/infrastructure"
	"tabstat/internal/shared/testutil"
	api "tabstat/pkg/contracts/api/v1"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func TestRequestID(t *testing.T) {
	var seen, traceID string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetReqID(r.Context())
		traceID = infrastructure.GetTraceID(r.Context())
	}))

	t.Run("generates", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
		assert.Equal(t, seen, traceID)
	})

	t.Run("keeps incoming", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})
}

func TestStructuredLogger(t *testing.T) {
	logger, logs := testutil.CaptureLogs(t)
	h := RequestID(StructuredLogger(logger)(http.HandlerFunc(okHandler)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, logs.HasMessage("request completed"))
	testutil.ExpectAttr(t, logs, "path", "/api/health")
	testutil.ExpectAttr(t, logs, "status", int64(http.StatusOK))
}

func TestRecoverer(t *testing.T) {
	logger, logs := testutil.CaptureLogs(t)
	errorHandler := apperrors.NewErrorHandler(logger, false)

	h := RequestID(Recoverer(errorHandler)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperrors.TypeInternal, body["type"])
	assert.NotEmpty(t, body["trace_id"])
	assert.True(t, logs.HasMessage("panic recovered"))
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.CaptureLogs(t)
	rl := NewRateLimiter(0.001, 2, logger)
	h := rl.Handler(http.HandlerFunc(okHandler))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/api/v1/stats", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), apperrors.TypeRateLimit)
	assert.True(t, logs.HasMessage("rate limit exceeded"))
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}})(http.HandlerFunc(okHandler))

	tests := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantOrigin string
		wantCode   int
	}{
		{name: "allowed origin", method: http.MethodGet, origin: "https://app.example", wantOrigin: "https://app.example", wantCode: 200},
		{name: "other origin", method: http.MethodGet, origin: "https://evil.example", wantCode: 200},
		{name: "preflight", method: http.MethodOptions, origin: "https://app.example", preflight: true, wantOrigin: "https://app.example", wantCode: 204},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/stats", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestOTelMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(NewOTelMiddleware(nil, nil).Handler)
	r.Get("/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGetRoutePattern(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	assert.Equal(t, "/items/42", getRoutePattern(req))

	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = []string{"/items/{id}"}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	assert.Equal(t, "/items/{id}", getRoutePattern(req))
}

func TestValidator_Decode(t *testing.T) {
	logger, _ := testutil.CaptureLogs(t)
	v := NewValidator(logger, 256)

	tests := []struct {
		name      string
		body      string
		wantType  apperrors.ErrorType
		wantField string
	}{
		{name: "valid", body: `{"path":"a.csv","operations":["max","std"]}`},
		{name: "inline csv", body: `{"csv":"a\n1\n","operations":["mean"],"threads":2}`},
		{name: "malformed json", body: `{"path":`, wantType: apperrors.ErrTypeInvalidRequest},
		{name: "unknown field", body: `{"path":"a.csv","operations":["max"],"extra":1}`, wantType: apperrors.ErrTypeInvalidRequest},
		{name: "unknown operation", body: `{"path":"a.csv","operations":["sum"]}`, wantField: "operations[0]"},
		{name: "no operations", body: `{"path":"a.csv","operations":[]}`, wantField: "operations"},
		{name: "no source", body: `{"operations":["max"]}`, wantField: "path"},
		{name: "both sources", body: `{"path":"a.csv","csv":"a\n1","operations":["max"]}`, wantField: "path"},
		{name: "negative threads", body: `{"path":"a.csv","operations":["max"],"threads":-1}`, wantField: "threads"},
		{name: "too large", body: `{"path":"` + strings.Repeat("x", 300) + `","operations":["max"]}`, wantType: apperrors.ErrTypeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/stats", strings.NewReader(tt.body))
			var dst api.StatsRequest
			err := v.Decode(req, &dst)

			switch {
			case tt.wantType != "":
				assert.Equal(t, tt.wantType, apperrors.TypeOf(err))
			case tt.wantField != "":
				var verrs apperrors.ValidationErrors
				require.ErrorAs(t, err, &verrs)
				assert.Equal(t, tt.wantField, verrs[0].Field)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestContentTypeValidator(t *testing.T) {
	h := ContentTypeValidator("application/json")(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stats", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/stats", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
