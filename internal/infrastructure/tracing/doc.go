/*
Package tracing provides lightweight request tracing for the viewer host.

Each API request gets a span whose ids are prefixed ULIDs (req_*). Spans
are finished by the gin middleware and logged by a single collector
goroutine, so request handling never blocks on logging.

# Usage

	tracer := tracing.New("photosphere", logger.Logger)
	defer tracer.Close()
	router.Use(tracing.Middleware(tracer))

	// in a handler
	log.Info("Screen opened", tracing.Field(c.Request.Context()))

# Propagation

	X-Trace-ID: trace the request belongs to
	X-Span-ID:  caller's span, recorded as the parent
*/
package tracing
