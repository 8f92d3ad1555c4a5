package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TraceID is a 128-bit trace identifier, one per ingested event.
type TraceID [16]byte

func (t TraceID) String() string { return hex.EncodeToString(t[:]) }

// SpanID is a 64-bit span identifier, one per pipeline stage.
type SpanID [8]byte

func (s SpanID) String() string { return hex.EncodeToString(s[:]) }

func generateTraceID() TraceID {
	var id TraceID
	_, _ = rand.Read(id[:])
	return id
}

func generateSpanID() SpanID {
	var id SpanID
	_, _ = rand.Read(id[:])
	return id
}

// Span represents one stage of an event's trip through the pipeline:
// ingest, a worker evaluation, fusion, or action dispatch.
type Span struct {
	mu         sync.Mutex
	Name       string
	TraceID    TraceID
	SpanID     SpanID
	StartTime  time.Time
	EndTime    time.Time
	Attributes map[string]string
	StatusCode string // "OK", "ERROR", "UNSET"
	finished   bool
}

func (s *Span) SetAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attributes[key] = value
}

func (s *Span) SetStatus(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatusCode = code
}

func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.EndTime = time.Now().UTC()
		s.finished = true
	}
}

func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// SpanExporter receives completed spans for export to a backend.
type SpanExporter interface {
	Export(spans []*Span) error
	Shutdown() error
}

// Tracer creates and buffers spans for an event's pipeline trip, flushing
// them to an exporter periodically so spans never linger under low
// traffic.
type Tracer struct {
	mu       sync.Mutex
	logger   zerolog.Logger
	exporter SpanExporter
	sampler  float64 // 0.0-1.0 sampling rate
	buffer   []*Span
	bufSize  int
	stopCh   chan struct{}
}

// NewTracer creates a new per-event tracer.
func NewTracer(logger zerolog.Logger, exporter SpanExporter, sampleRate float64) *Tracer {
	if sampleRate <= 0 {
		sampleRate = 1.0
	}
	t := &Tracer{
		logger:   logger.With().Str("component", "tracer").Logger(),
		exporter: exporter,
		sampler:  sampleRate,
		buffer:   make([]*Span, 0, 1000),
		bufSize:  1000,
		stopCh:   make(chan struct{}),
	}
	go t.periodicFlush()
	return t
}

func (t *Tracer) periodicFlush() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.flush()
		case <-t.stopCh:
			return
		}
	}
}

// Stop shuts down the periodic flush goroutine and exports remaining spans.
func (t *Tracer) Stop() {
	close(t.stopCh)
	t.flush()
}

// StartTrace begins a new trace for one ingested event, returning the
// root ingest span. traceID ties together every stage (ingest, workers,
// fusion, action) that follows for this event.
func (t *Tracer) StartTrace(requestID string) (TraceID, *Span) {
	traceID := generateTraceID()
	span := t.startSpan("ingest", traceID)
	span.SetAttribute("request_id", requestID)
	return traceID, span
}

// StartSpan begins a child span under an existing trace — one for the
// whole worker fan-out, the fusion pass, or action dispatch.
func (t *Tracer) StartSpan(name string, traceID TraceID) *Span {
	return t.startSpan(name, traceID)
}

func (t *Tracer) startSpan(name string, traceID TraceID) *Span {
	sampled := t.sampler >= 1.0
	if !sampled && t.sampler > 0 {
		v := uint32(traceID[15]) | uint32(traceID[14])<<8
		sampled = float64(v)/float64(0xFFFF) < t.sampler
	} else {
		sampled = true
	}
	return &Span{
		Name:       name,
		TraceID:    traceID,
		SpanID:     generateSpanID(),
		StartTime:  time.Now().UTC(),
		Attributes: make(map[string]string),
		StatusCode: "UNSET",
	}
}

// EndSpan finishes a span and buffers it for export.
func (t *Tracer) EndSpan(span *Span) {
	span.End()

	t.mu.Lock()
	t.buffer = append(t.buffer, span)
	shouldFlush := len(t.buffer) >= t.bufSize
	t.mu.Unlock()

	if shouldFlush {
		t.flush()
	}
}

func (t *Tracer) flush() {
	t.mu.Lock()
	if len(t.buffer) == 0 {
		t.mu.Unlock()
		return
	}
	spans := t.buffer
	t.buffer = make([]*Span, 0, t.bufSize)
	t.mu.Unlock()

	if t.exporter != nil {
		if err := t.exporter.Export(spans); err != nil {
			t.logger.Error().Err(err).Int("spans", len(spans)).Msg("span export failed")
		}
	}
}

// Shutdown flushes remaining spans and closes the exporter.
func (t *Tracer) Shutdown() {
	t.flush()
	if t.exporter != nil {
		_ = t.exporter.Shutdown()
	}
}

// LogExporter writes spans as structured log entries. It is the only
// exporter gatewatch ships — there is no OTLP collector in scope, so
// spans are observable the same way the rest of the core is: through
// the log stream.
type LogExporter struct {
	logger zerolog.Logger
}

func NewLogExporter(logger zerolog.Logger) *LogExporter {
	return &LogExporter{logger: logger.With().Str("exporter", "log").Logger()}
}

func (e *LogExporter) Export(spans []*Span) error {
	for _, s := range spans {
		e.logger.Debug().
			Str("name", s.Name).
			Str("trace_id", s.TraceID.String()).
			Str("span_id", s.SpanID.String()).
			Dur("duration", s.Duration()).
			Str("status", s.StatusCode).
			Int("attributes", len(s.Attributes)).
			Msg("span")
	}
	return nil
}

func (e *LogExporter) Shutdown() error { return nil }

type traceCtxKey struct{}

// SpanFromContext retrieves the current span from context.
func SpanFromContext(ctx context.Context) *Span {
	if s, ok := ctx.Value(traceCtxKey{}).(*Span); ok {
		return s
	}
	return nil
}

// ContextWithSpan stores a span in context.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, traceCtxKey{}, span)
}
