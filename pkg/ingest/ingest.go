// Package ingest creates arrays from in-memory matrices and tables.
//
// An ingestion session normalizes the source, builds and creates the array
// schema, plans chunks and commits them one at a time through a capped
// writer, then closes the array. Commits happen in plan order, so for row
// chunked sources fragment order follows row order. The context is checked
// before every commit; fragments committed before an error or cancellation
// stay in the array and the returned Report counts them.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/segmentio/ksuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arraystore/pkg/arrowutil"
	"github.com/ajitpratap0/arraystore/pkg/chunk"
	"github.com/ajitpratap0/arraystore/pkg/compression"
	"github.com/ajitpratap0/arraystore/pkg/config"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/formats/columnar"
	"github.com/ajitpratap0/arraystore/pkg/logger"
	"github.com/ajitpratap0/arraystore/pkg/metrics"
	"github.com/ajitpratap0/arraystore/pkg/normalize"
	"github.com/ajitpratap0/arraystore/pkg/observability"
	"github.com/ajitpratap0/arraystore/pkg/source"
	"github.com/ajitpratap0/arraystore/pkg/store"
	"github.com/ajitpratap0/arraystore/pkg/writer"
)

// Report summarizes an ingestion session. On failure it describes what was
// committed before the error.
type Report struct {
	URI       string
	Chunks    int
	Fragments int
	Rows      int64
	Bytes     int64
	Splits    int
	Duration  time.Duration
}

func (r *Report) add(s writer.Stats) {
	r.Fragments += s.Fragments
	r.Rows += s.Rows
	r.Bytes += s.Bytes
	r.Splits += s.Splits
}

// Ingester runs ingestion sessions against one store.
type Ingester struct {
	store      *store.Store
	mem        memory.Allocator
	logger     *zap.Logger
	normalizer *normalize.Normalizer
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger. The global logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) { in.logger = l }
}

// WithAllocator sets the allocator for normalized and materialized columns.
func WithAllocator(mem memory.Allocator) Option {
	return func(in *Ingester) { in.mem = mem }
}

// New creates an Ingester writing to st.
func New(st *store.Store, opts ...Option) *Ingester {
	in := &Ingester{store: st, mem: memory.DefaultAllocator}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = logger.OrDefault(in.logger).With(zap.String("component", "ingest"))
	in.normalizer = normalize.New(in.mem, in.logger)
	return in
}

// session carries the per-call logger, span and report.
type session struct {
	logger *zap.Logger
	tracer *observability.IngestTracer
	span   *observability.Span
	start  time.Time
	report Report
}

func (in *Ingester) begin(ctx context.Context, op, uri string, objType store.ObjectType) (context.Context, *session) {
	id := ksuid.New().String()
	ctx = logger.ContextWith(ctx, logger.SessionIDKey, id)
	ctx = logger.ContextWith(ctx, logger.ArrayURIKey, uri)
	ctx = logger.ContextWith(ctx, logger.ObjectTypeKey, string(objType))
	s := &session{
		logger: logger.FromContext(ctx, in.logger),
		tracer: observability.NewIngestTracer(string(objType), uri),
		start:  time.Now(),
		report: Report{URI: uri},
	}
	ctx, s.span = s.tracer.StartSpan(ctx, op)
	s.span.SetAttribute("session_id", id)
	return ctx, s
}

func (s *session) end(err error) Report {
	s.report.Duration = time.Since(s.start)
	s.span.SetAttribute("report.fragments", s.report.Fragments)
	s.span.SetAttribute("report.rows", s.report.Rows)
	s.span.Finish(err)

	fields := []zap.Field{
		zap.Int("chunks", s.report.Chunks),
		zap.Int("fragments", s.report.Fragments),
		zap.Int64("rows", s.report.Rows),
		zap.Int64("bytes", s.report.Bytes),
		zap.Int("splits", s.report.Splits),
		zap.Duration("duration", s.report.Duration),
	}
	if err != nil {
		metrics.IngestErrors.WithLabelValues(errorType(err)).Inc()
		s.logger.Error("ingestion failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("ingestion complete", fields...)
	}
	return s.report
}

func errorType(err error) string {
	if e, ok := errors.As(err); ok {
		return string(e.Type)
	}
	switch err {
	case context.Canceled:
		return "canceled"
	case context.DeadlineExceeded:
		return "deadline_exceeded"
	}
	return "unknown"
}

// build materializes one planned chunk. The caller releases the record.
type build func(c chunk.Chunk) (arrow.Record, error)

// writeChunks commits every chunk of the plan in order. With cells set,
// the records hold one cell per row and rows are counted across chunks;
// otherwise record rows are the source rows of the chunk.
func (in *Ingester) writeChunks(ctx context.Context, s *session, arr *store.Array, src chunk.Source,
	opts config.CreateOptions, cells bool, materialize build) error {
	w := writer.New(arr, opts.RemoteCapNBytes, s.logger)
	defer func() { s.report.add(w.Stats()) }()

	s.logger.Info("writing chunks",
		zap.Int("majors", src.Majors()),
		zap.Bool("write_chunked", opts.WriteChunked),
		zap.Int64("goal_chunk_nnz", opts.GoalChunkNNZ),
		zap.Int64("remote_cap_nbytes", opts.RemoteCapNBytes))

	var written int64
	for c := range chunk.Plan(src, opts.ChunkOptions()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		metrics.ChunkNNZ.Observe(float64(c.NNZ))
		err := s.tracer.TraceChunk(ctx, c.Index, c.NNZ, func(ctx context.Context) error {
			rec, err := materialize(c)
			if err != nil {
				return err
			}
			defer rec.Release()
			s.logger.Debug("writing chunk",
				zap.Int("chunk", c.Index),
				zap.Int("lo", c.Lo),
				zap.Int("hi", c.Hi),
				zap.Int64("nnz", c.NNZ),
				zap.Int64("cells", rec.NumRows()))
			base := int64(c.Lo)
			if cells {
				base = written
			}
			err = w.WriteAt(ctx, rec, base)
			if e, ok := errors.As(err); ok && cells && e.Type == errors.ErrorTypeCapacityExceeded {
				locateCell(e, rec, base)
			}
			written += rec.NumRows()
			return err
		})
		if err != nil {
			if e, ok := errors.As(err); ok {
				e.WithDetail("chunk", c.Index)
			}
			return err
		}
		s.report.Chunks++
	}
	return nil
}

// locateCell adds the coordinates of the cell named by e's row detail.
func locateCell(e *errors.Error, rec arrow.Record, base int64) {
	row, ok := e.Detail("row").(int64)
	if !ok || row < base || row-base >= rec.NumRows() {
		return
	}
	e.WithDetail("cell", row)
	for i, f := range rec.Schema().Fields() {
		if v, ok := arrowutil.Int64At(rec.Column(i), int(row-base)); ok && strings.HasPrefix(f.Name, "dim_") {
			e.WithDetail(f.Name, v)
		}
	}
}

// create creates the array and runs fn against it, closing the array
// afterwards whatever fn returns.
func (in *Ingester) create(ctx context.Context, s *session, uri string, objType store.ObjectType,
	schema *store.Schema, opts config.CreateOptions, fn func(arr *store.Array) error) (err error) {
	fo, err := fragmentOptions(opts)
	if err != nil {
		return err
	}
	arr, err := in.store.Create(ctx, uri, objType, schema, fo)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, arr.Close())
	}()
	s.logger.Debug("array created", zap.Stringer("schema", schema))
	return fn(arr)
}

func fragmentOptions(opts config.CreateOptions) (store.FragmentOptions, error) {
	format, err := columnar.ParseFormat(opts.FragmentFormat)
	if err != nil {
		return store.FragmentOptions{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid fragment_format")
	}
	algo, err := compression.ParseAlgorithm(opts.FragmentCompression)
	if err != nil {
		return store.FragmentOptions{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid fragment_compression")
	}
	return store.FragmentOptions{Format: format, Compression: algo}, nil
}

// tileExtent returns tile clipped to the width of [lo, hi].
func tileExtent(lo, hi, tile int64) int64 {
	// wraps to 0 only for the full int64 range
	span := uint64(hi) - uint64(lo) + 1
	if span != 0 && span < uint64(tile) {
		return int64(span)
	}
	return tile
}

// CreateFromMatrix creates a SparseNDArray or DenseNDArray from m in st.
func CreateFromMatrix(ctx context.Context, st *store.Store, uri string, kind store.ObjectType,
	m source.Matrix, opts config.CreateOptions) (Report, error) {
	return New(st).CreateFromMatrix(ctx, uri, kind, m, opts)
}

// CreateFromTable creates a DataFrame from t in st, indexed by
// indexColumns. A nil indexColumns indexes by joinid.
func CreateFromTable(ctx context.Context, st *store.Store, uri string, t *source.Table,
	indexColumns []string, opts config.CreateOptions) (Report, error) {
	return New(st).CreateFromTable(ctx, uri, t, indexColumns, opts)
}

// WriteTable normalizes rec and appends it to an open array.
func WriteTable(ctx context.Context, arr *store.Array, rec arrow.Record, opts config.CreateOptions) (Report, error) {
	return New(nil).WriteTable(ctx, arr, rec, opts)
}
