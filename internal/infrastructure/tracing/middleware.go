package tracing

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/photosphere/internal/shared/id"
)

// Middleware traces each request. Incoming X-Trace-ID/X-Span-ID continue
// an existing trace; the response carries the ids of the server span.
func Middleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithTrace(c.Request.Context(),
			id.RequestID(c.GetHeader(TraceHeader)),
			id.RequestID(c.GetHeader(SpanHeader)))

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.path", c.Request.URL.Path)

		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, string(span.TraceID))
		c.Header(SpanHeader, string(span.SpanID))

		c.Next()

		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last()
		}
		span.SetTag("http.status", strconv.Itoa(c.Writer.Status()))
		span.Finish(c.Writer.Status(), err)
		tracer.Submit(span)
	}
}
