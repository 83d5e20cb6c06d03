// Package observability provides tracing for ingestion sessions.
//
// Spans go through the global otel tracer provider. Until InitTracing runs
// that provider is a no-op, so callers may always start spans.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/arraystore/pkg/errors"
)

const instrumentationName = "github.com/ajitpratap0/arraystore"

// Tracer returns the arraystore tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Span wraps an otel span, collecting attributes until End.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan starts a span named operationName.
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Finish records err, if any, on the span and ends it.
func (s *Span) Finish(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		if e, ok := errors.As(err); ok {
			s.SetAttribute("error.type", string(e.Type))
		}
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.End()
}

// End sets the collected attributes and ends the span.
func (s *Span) End() {
	s.SetAttribute("duration_ms", time.Since(s.startTime).Milliseconds())
	s.span.SetAttributes(s.attributes...)
	s.span.End()
}

// IngestTracer names spans after the array being written.
type IngestTracer struct {
	objectType string
	uri        string
}

// NewIngestTracer creates a tracer for one ingestion session.
func NewIngestTracer(objectType, uri string) *IngestTracer {
	return &IngestTracer{objectType: objectType, uri: uri}
}

// StartSpan starts a span named ingest.<operation>.
func (it *IngestTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := NewSpan(ctx, "ingest."+operation)
	span.SetAttribute("array.object_type", it.objectType)
	span.SetAttribute("array.uri", it.uri)
	return ctx, span
}

// TraceChunk runs fn inside a span describing one chunk.
func (it *IngestTracer) TraceChunk(ctx context.Context, index int, nnz int64, fn func(context.Context) error) error {
	ctx, span := it.StartSpan(ctx, "chunk")
	span.SetAttribute("chunk.index", index)
	span.SetAttribute("chunk.nnz", nnz)

	err := fn(ctx)
	span.Finish(err)
	return err
}
