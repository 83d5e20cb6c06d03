// Package writer commits records to an array while holding every commit
// under a byte cap.
//
// A record whose estimated size is over the cap is split in halves,
// recursively, and each piece that fits is committed as its own fragment.
// A single row over the cap cannot be split further and fails with a
// CapacityExceeded error. Pieces committed before the failure stay
// committed.
package writer

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/logger"
	"github.com/ajitpratap0/arraystore/pkg/metrics"
	"github.com/ajitpratap0/arraystore/pkg/store"
)

// Committer stores one record as one immutable fragment. *store.Array
// implements it.
type Committer interface {
	Commit(ctx context.Context, rec arrow.Record) (store.CommitResult, error)
}

// Stats summarizes the commits made by a Writer.
type Stats struct {
	Fragments int
	Rows      int64
	Bytes     int64
	Splits    int
}

// Writer commits records sequentially to one target.
type Writer struct {
	target    Committer
	capNBytes int64
	logger    *zap.Logger
	stats     Stats
}

// New creates a Writer. capNBytes <= 0 disables the cap.
func New(target Committer, capNBytes int64, l *zap.Logger) *Writer {
	return &Writer{
		target:    target,
		capNBytes: capNBytes,
		logger:    logger.OrDefault(l).With(zap.String("component", "writer")),
	}
}

// Stats returns totals over every successful commit.
func (w *Writer) Stats() Stats {
	return w.stats
}

// Write commits rec as one or more fragments. An empty record is committed
// as one empty fragment. The context is checked before every commit.
func (w *Writer) Write(ctx context.Context, rec arrow.Record) error {
	return w.write(ctx, rec, 0)
}

// WriteAt is Write for a record whose first row is row offset of a larger
// input. A CapacityExceeded error names the row within that input.
func (w *Writer) WriteAt(ctx context.Context, rec arrow.Record, offset int64) error {
	return w.write(ctx, rec, offset)
}

func (w *Writer) write(ctx context.Context, rec arrow.Record, offset int64) error {
	n := rec.NumRows()
	if nb := NBytes(rec); w.capNBytes > 0 && nb > w.capNBytes && n > 0 {
		if n == 1 {
			return errors.CapacityExceeded(offset, nb, w.capNBytes)
		}
		half := n / 2
		w.stats.Splits++
		metrics.CapSplits.Inc()
		w.logger.Debug("record over byte cap, splitting",
			zap.Int64("offset", offset),
			zap.Int64("rows", n),
			zap.Int64("nbytes", nb),
			zap.Int64("cap_nbytes", w.capNBytes))

		left := rec.NewSlice(0, half)
		err := w.write(ctx, left, offset)
		left.Release()
		if err != nil {
			return err
		}
		right := rec.NewSlice(half, n)
		defer right.Release()
		return w.write(ctx, right, offset+half)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := w.target.Commit(ctx, rec)
	if err != nil {
		return err
	}
	w.stats.Fragments++
	w.stats.Rows += res.Rows
	w.stats.Bytes += res.Bytes
	return nil
}

// NBytes estimates the in-memory size of rec from its Arrow buffers: fixed
// width values, boolean bitmaps, variable length offsets plus data, and a
// validity bitmap for columns holding nulls. An empty record is 0 bytes.
func NBytes(rec arrow.Record) int64 {
	if rec.NumRows() == 0 {
		return 0
	}
	var total int64
	for _, col := range rec.Columns() {
		total += columnNBytes(col)
	}
	return total
}

func columnNBytes(col arrow.Array) int64 {
	n := int64(col.Len())
	if n == 0 {
		return 0
	}
	var nb int64
	if col.NullN() > 0 {
		nb += (n + 7) / 8
	}
	switch a := col.(type) {
	case *array.Boolean:
		nb += (n + 7) / 8
	case *array.LargeString:
		offs := a.ValueOffsets()
		nb += (n+1)*8 + offs[n] - offs[0]
	case *array.LargeBinary:
		offs := a.ValueOffsets()
		nb += (n+1)*8 + offs[n] - offs[0]
	case *array.String:
		offs := a.ValueOffsets()
		nb += (n+1)*4 + int64(offs[n]-offs[0])
	case *array.Binary:
		offs := a.ValueOffsets()
		nb += (n+1)*4 + int64(offs[n]-offs[0])
	default:
		if fw, ok := col.DataType().(arrow.FixedWidthDataType); ok {
			nb += n * int64(fw.BitWidth()/8)
		}
	}
	return nb
}
