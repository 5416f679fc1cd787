package tracing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/photosphere/internal/shared/id"
)

// Header names used for propagation
const (
	TraceHeader = "X-Trace-ID"
	SpanHeader  = "X-Span-ID"
)

// Span is one traced operation
type Span struct {
	TraceID    id.RequestID
	SpanID     id.RequestID
	ParentID   id.RequestID
	Name       string
	StartTime  time.Time
	Duration   time.Duration
	StatusCode int
	Error      error

	mu   sync.Mutex
	tags map[string]string
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[key] = value
}

// Tags returns a copy of the span tags
func (s *Span) Tags() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}

// Finish records the duration and outcome
func (s *Span) Finish(status int, err error) {
	s.Duration = time.Since(s.StartTime)
	s.StatusCode = status
	s.Error = err
}

// Tracer hands finished spans to a single collector goroutine that logs them
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New creates a tracer; Close stops its collector
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, 1000),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

// StartSpan opens a span, continuing the trace carried by ctx if any
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := TraceID(ctx)
	if traceID == "" {
		traceID = id.NewRequestID()
	}
	span := &Span{
		TraceID:   traceID,
		SpanID:    id.NewRequestID(),
		ParentID:  SpanID(ctx),
		Name:      name,
		StartTime: time.Now(),
		tags:      make(map[string]string),
	}
	return span, WithTrace(ctx, span.TraceID, span.SpanID)
}

// Submit queues a finished span; a full buffer or a closed tracer drops it
func (t *Tracer) Submit(span *Span) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		t.logger.Debug("Tracer closed, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("operation", span.Name))
		return
	}
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("Span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("operation", span.Name))
	}
}

// Close drains queued spans and stops the collector
func (t *Tracer) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.spans)
	}
	t.mu.Unlock()
	<-t.done
}

func (t *Tracer) collect() {
	defer close(t.done)
	for span := range t.spans {
		t.emit(span)
	}
}

func (t *Tracer) emit(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.String("service", t.service),
		zap.Int("status", span.StatusCode),
		zap.Duration("duration", span.Duration),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	for k, v := range span.Tags() {
		fields = append(fields, zap.String(k, v))
	}

	if span.Error != nil {
		t.logger.Error("Span completed with error", append(fields, zap.Error(span.Error))...)
		return
	}
	t.logger.Debug("Span completed", fields...)
}

type contextKey int

const (
	traceKey contextKey = iota
	spanKey
)

// WithTrace stores trace and span ids in ctx
func WithTrace(ctx context.Context, trace, span id.RequestID) context.Context {
	if trace != "" {
		ctx = context.WithValue(ctx, traceKey, trace)
	}
	if span != "" {
		ctx = context.WithValue(ctx, spanKey, span)
	}
	return ctx
}

// TraceID retrieves the trace id from ctx
func TraceID(ctx context.Context) id.RequestID {
	v, _ := ctx.Value(traceKey).(id.RequestID)
	return v
}

// SpanID retrieves the current span id from ctx
func SpanID(ctx context.Context) id.RequestID {
	v, _ := ctx.Value(spanKey).(id.RequestID)
	return v
}

// Field returns a zap field carrying the trace id of ctx
func Field(ctx context.Context) zap.Field {
	return zap.String("trace_id", string(TraceID(ctx)))
}

// Format renders trace context for plain log lines
func Format(ctx context.Context) string {
	return fmt.Sprintf("[trace:%s span:%s]", TraceID(ctx), SpanID(ctx))
}
