package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/photosphere/internal/shared/id"
)

func TestStartSpanContinuesTrace(t *testing.T) {
	tracer := New("test", nil)
	defer tracer.Close()

	root, ctx := tracer.StartSpan(context.Background(), "root")
	assert.True(t, id.IsPrefixed(string(root.TraceID), id.RequestPrefix))
	assert.Empty(t, root.ParentID)

	child, ctx := tracer.StartSpan(ctx, "child")
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.Equal(t, child.SpanID, SpanID(ctx))
	assert.Contains(t, Format(ctx), string(root.TraceID))
}

func TestCloseDrainsSpans(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("test", zap.New(core))

	ok, _ := tracer.StartSpan(context.Background(), "ok")
	ok.SetTag("screen_id", "scr_1")
	ok.Finish(200, nil)
	tracer.Submit(ok)

	bad, _ := tracer.StartSpan(context.Background(), "bad")
	bad.Finish(500, errors.New("boom"))
	tracer.Submit(bad)

	tracer.Close()
	tracer.Close()

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Span completed", entries[0].Message)
	assert.Equal(t, "scr_1", entries[0].ContextMap()["screen_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestSubmitAfterCloseIsDropped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("test", zap.New(core))
	tracer.Close()

	late, _ := tracer.StartSpan(context.Background(), "GET /sessions/:id/events")
	late.Finish(101, nil)
	assert.NotPanics(t, func() { tracer.Submit(late) })

	entries := logs.FilterMessage("Tracer closed, dropping span").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "GET /sessions/:id/events", entries[0].ContextMap()["operation"])
	assert.Empty(t, logs.FilterMessage("Span completed").All())
}

func TestMiddlewarePropagatesHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("test", zap.New(core))

	var seen id.RequestID
	r := gin.New()
	r.Use(Middleware(tracer))
	r.GET("/screens/:id", func(c *gin.Context) {
		seen = TraceID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/screens/scr_1", nil)
	req.Header.Set(TraceHeader, "req_upstream")
	req.Header.Set(SpanHeader, "req_parent")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	tracer.Close()

	assert.Equal(t, id.RequestID("req_upstream"), seen)
	assert.Equal(t, "req_upstream", w.Header().Get(TraceHeader))
	assert.True(t, strings.HasPrefix(w.Header().Get(SpanHeader), "req_"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "GET /screens/:id", fields["operation"])
	assert.Equal(t, "req_parent", fields["parent_id"])
	assert.Equal(t, "204", fields["http.status"])
}
