package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"mise/internal/shared/auth"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing_RouteAndRequestID(t *testing.T) {
	recorder := withSpanRecorder(t)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/notifications", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Logging(zap.NewNop())(Tracing(mux))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/notifications", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /webhooks/notifications", spans[0].Name())

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "req-42", attrs["http.request_id"].AsString())
	assert.Equal(t, "POST /webhooks/notifications", attrs["http.route"].AsString())
	assert.Equal(t, int64(http.StatusOK), attrs["http.status_code"].AsInt64())
}

func TestTracing_UnmatchedAndServerError(t *testing.T) {
	recorder := withSpanRecorder(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	handler := Tracing(mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "unmatched", spanAttrs(spans[1])["http.route"].AsString())
	_, hasID := spanAttrs(spans[1])["http.request_id"]
	assert.False(t, hasID)
}

func TestAuth_TagsSpanWithUser(t *testing.T) {
	recorder := withSpanRecorder(t)

	jwt := auth.NewJWT("secret")
	token, err := jwt.Generate("user-1", "ana@example.com")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("POST /api/digest", Auth(jwt)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	req := httptest.NewRequest(http.MethodPost, "/api/digest", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	Tracing(mux).ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "user-1", spanAttrs(spans[0])["enduser.id"].AsString())
}
