package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/stagingfs/internal/shared/id"
)

func TestStartSpanNewTrace(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	span, ctx := tracer.StartSpan(context.Background(), "op")

	assert.True(t, id.IsValidPrefixed(string(span.TraceID), "req"))
	assert.True(t, id.IsValidPrefixed(string(span.SpanID), "span"))
	assert.Empty(t, span.ParentID)
	assert.Equal(t, span.TraceID, GetTraceID(ctx))
	assert.Equal(t, span.SpanID, GetSpanID(ctx))
}

func TestStartSpanChild(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	parent, ctx := tracer.StartSpan(context.Background(), "parent")
	child, _ := tracer.StartSpan(ctx, "child")

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.NotEqual(t, parent.SpanID, child.SpanID)
}

func TestInjectExtractRoundTrip(t *testing.T) {
	ctx := WithRemoteParent(context.Background(), "trace-1", "span-1")

	headers := map[string]string{}
	InjectTraceContext(ctx, headers)
	assert.Equal(t, "trace-1", headers[TraceHeader])
	assert.Equal(t, "span-1", headers[SpanHeader])

	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	traceID, spanID := ExtractTraceContext(h)
	assert.Equal(t, TraceID("trace-1"), traceID)
	assert.Equal(t, SpanID("span-1"), spanID)
}

func TestInjectWithoutTrace(t *testing.T) {
	headers := map[string]string{}
	InjectTraceContext(context.Background(), headers)
	assert.Empty(t, headers)
	assert.Nil(t, Fields(context.Background()))
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	tracer := New("test", zap.New(core))

	var seen TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/list/*path", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/list/a", nil)
	req.Header.Set(TraceHeader, "upstream-trace")
	req.Header.Set(SpanHeader, "upstream-span")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, TraceID("upstream-trace"), seen)
	assert.Equal(t, "upstream-trace", w.Header().Get(TraceHeader))
	assert.NotEqual(t, "upstream-span", w.Header().Get(SpanHeader))

	tracer.Close()
	require.Eventually(t, func() bool {
		return logs.FilterMessage("span completed").Len() == 1
	}, time.Second, 10*time.Millisecond)

	entry := logs.FilterMessage("span completed").All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "GET /list/*path", fields["operation"])
	assert.Equal(t, "upstream-span", fields["parent_id"])
	assert.Equal(t, "204", fields["http.status"])
}

func TestSubmitAfterClose(t *testing.T) {
	tracer := New("test", zap.NewNop())
	tracer.Close()
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	span.Finish()
	assert.NotPanics(t, func() { tracer.Submit(span) })
}
