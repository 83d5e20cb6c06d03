package store

import (
	"context"
	"encoding/binary"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/arraystore/pkg/arrowutil"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/metrics"
	"github.com/ajitpratap0/arraystore/pkg/order"
)

// Constraint selects coordinates of one integer dimension. A coordinate
// matches if it equals one of Points or lies in one of Ranges (both ends
// inclusive). An empty Constraint matches everything.
type Constraint struct {
	Points []int64
	Ranges [][2]int64
}

// Match reports whether v is selected.
func (c Constraint) Match(v int64) bool {
	if len(c.Points) == 0 && len(c.Ranges) == 0 {
		return true
	}
	if slices.Contains(c.Points, v) {
		return true
	}
	for _, r := range c.Ranges {
		if v >= r[0] && v <= r[1] {
			return true
		}
	}
	return false
}

// ReadOptions controls Read.
type ReadOptions struct {
	// ColumnNames selects output columns. Nil selects all; unknown names
	// are ignored. Dimensions are returned before attributes.
	ColumnNames []string
	// ResultOrder is an ordering token: "row-major", "col-major" or
	// "unordered" for indexed arrays, "rowid-ordered" or "unordered" for
	// arrays indexed only by joinid. Empty selects the default order.
	ResultOrder string
	// Coords restricts integer dimensions by name.
	Coords map[string]Constraint
}

// Indexed reports whether result orders for this array use the indexed
// vocabulary. Only a dataframe whose sole dimension is the row id uses the
// non-indexed one.
func (a *Array) Indexed() bool {
	return !(a.ObjectType() == DataFrame && len(a.schema.Dims) == 1 && a.schema.Dims[0].Name == JoinID)
}

// ResultOrder translates an ordering token for this array.
func (a *Array) ResultOrder(token string) (order.Native, error) {
	if a.Indexed() {
		return order.Indexed(token)
	}
	return order.NonIndexed(token)
}

// Read returns the selected cells as one record.
//
// Sparse arrays return stored cells. Unless the schema allows duplicates,
// the last committed value wins for repeated coordinates. The default order
// is commit order. Dense arrays return every cell of the selected domain;
// cells never written hold zero. Their default order is row-major.
func (a *Array) Read(ctx context.Context, opts ReadOptions) (arrow.Record, error) {
	native, err := a.ResultOrder(opts.ResultOrder)
	if err != nil {
		return nil, err
	}
	if err := a.checkCoords(opts.Coords); err != nil {
		return nil, err
	}

	all, err := a.readAll(ctx)
	if err != nil {
		return nil, err
	}
	defer all.Release()

	live := a.filter(all, a.liveRows(all), opts.Coords)

	var full arrow.Record
	if a.schema.Sparse {
		a.sortRows(all, live, native)
		full, err = a.takeRows(all, live)
	} else {
		full, err = a.denseCells(all, live, opts.Coords, native)
	}
	if err != nil {
		return nil, err
	}
	defer full.Release()

	dims, attrs := SplitColumnNames(a.schema, opts.ColumnNames)
	if dims == nil {
		full.Retain()
		return full, nil
	}
	out, err := arrowutil.Project(full, append(dims, attrs...))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to project columns")
	}
	return out, nil
}

// Count returns the number of rows a full Read returns.
func (a *Array) Count(ctx context.Context) (int64, error) {
	if !a.schema.Sparse {
		n := int64(1)
		for _, s := range a.schema.Shape() {
			n *= s
		}
		return n, nil
	}
	return a.NNZ(ctx)
}

// NNZ returns the number of distinct stored cells.
func (a *Array) NNZ(ctx context.Context) (int64, error) {
	all, err := a.readAll(ctx)
	if err != nil {
		return 0, err
	}
	defer all.Release()
	return int64(len(a.liveRows(all))), nil
}

// NonEmptyDomain returns, for each integer dimension, the inclusive range
// of coordinates holding data. An empty array yields an empty map.
func (a *Array) NonEmptyDomain(ctx context.Context) (map[string][2]int64, error) {
	all, err := a.readAll(ctx)
	if err != nil {
		return nil, err
	}
	defer all.Release()

	out := make(map[string][2]int64)
	if all.NumRows() == 0 {
		return out, nil
	}
	for i, d := range a.schema.Dims {
		if !d.Bounded() {
			continue
		}
		col := all.Column(i)
		lo, _ := arrowutil.Int64At(col, 0)
		hi := lo
		for r := 1; r < col.Len(); r++ {
			v, _ := arrowutil.Int64At(col, r)
			lo, hi = min(lo, v), max(hi, v)
		}
		out[d.Name] = [2]int64{lo, hi}
	}
	return out, nil
}

func (a *Array) checkCoords(coords map[string]Constraint) error {
	for name := range coords {
		d, ok := a.schema.Dim(name)
		if !ok {
			return errors.Newf(errors.ErrorTypeValidation, "%q is not a dimension", name).WithDetail("column", name)
		}
		if !d.Bounded() {
			return errors.Newf(errors.ErrorTypeValidation, "dimension %q does not support coordinate constraints", name).
				WithDetail("column", name)
		}
	}
	return nil
}

// readAll decodes every fragment, in parallel, and concatenates them in
// commit order.
func (a *Array) readAll(ctx context.Context) (arrow.Record, error) {
	frags, err := a.Fragments(ctx)
	if err != nil {
		return nil, err
	}

	recs := make([]arrow.Record, len(frags))
	defer func() {
		for _, r := range recs {
			if r != nil {
				r.Release()
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.store.readParallelism)
	for i, f := range frags {
		g.Go(func() error {
			payload, err := a.store.payload(gctx, f.Key)
			if err != nil {
				return err
			}
			rec, err := decodeFragment(a.store.mem, f, payload, a.arrowSchema)
			if err != nil {
				return err
			}
			recs[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all, err := arrowutil.ConcatRecords(a.store.mem, a.arrowSchema, recs)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to merge fragments")
	}
	a.logger.Debug("fragments merged", zap.Int("fragments", len(frags)), zap.Int64("rows", all.NumRows()))
	return all, nil
}

func (s *Store) payload(ctx context.Context, key string) ([]byte, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			metrics.FragmentCacheLookups.WithLabelValues("hit").Inc()
			return data, nil
		}
		metrics.FragmentCacheLookups.WithLabelValues("miss").Inc()
	}
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(key, data)
	}
	return data, nil
}

func (a *Array) coordKey(buf []byte, all arrow.Record, row int) []byte {
	buf = buf[:0]
	for i := range a.schema.Dims {
		buf = arrowutil.AppendKey(buf, all.Column(i), row)
	}
	return buf
}

// liveRows returns the rows that survive duplicate resolution, in commit
// order. A repeated coordinate keeps the position of its last write.
func (a *Array) liveRows(all arrow.Record) []int {
	n := int(all.NumRows())
	if a.schema.AllowsDuplicates {
		return arrowutil.Sequence(0, n)
	}
	last := make(map[string]int, n)
	var buf []byte
	for r := 0; r < n; r++ {
		buf = a.coordKey(buf, all, r)
		last[string(buf)] = r
	}
	rows := make([]int, 0, len(last))
	for r := 0; r < n; r++ {
		buf = a.coordKey(buf, all, r)
		if last[string(buf)] == r {
			rows = append(rows, r)
		}
	}
	return rows
}

func (a *Array) filter(all arrow.Record, rows []int, coords map[string]Constraint) []int {
	if len(coords) == 0 {
		return rows
	}
	out := rows[:0]
	for _, r := range rows {
		keep := true
		for i, d := range a.schema.Dims {
			c, ok := coords[d.Name]
			if !ok {
				continue
			}
			v, _ := arrowutil.Int64At(all.Column(i), r)
			if !c.Match(v) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

func (a *Array) sortRows(all arrow.Record, rows []int, native order.Native) {
	var dims []int
	switch native {
	case order.RowMajor:
		dims = arrowutil.Sequence(0, len(a.schema.Dims))
	case order.ColMajor:
		for i := len(a.schema.Dims) - 1; i >= 0; i-- {
			dims = append(dims, i)
		}
	default:
		return
	}
	slices.SortStableFunc(rows, func(x, y int) int {
		for _, d := range dims {
			if c := arrowutil.Compare(all.Column(d), x, y); c != 0 {
				return c
			}
		}
		return 0
	})
}

func (a *Array) takeRows(all arrow.Record, rows []int) (arrow.Record, error) {
	cols := make([]arrow.Array, all.NumCols())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	for i := range cols {
		col, err := arrowutil.Take(a.store.mem, all.Column(i), rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to gather rows")
		}
		cols[i] = col
	}
	return array.NewRecord(a.arrowSchema, cols, int64(len(rows))), nil
}

// denseCells enumerates every selected cell of a dense array and fills
// attributes from the stored cell at each coordinate, or zero.
func (a *Array) denseCells(all arrow.Record, rows []int, coords map[string]Constraint, native order.Native) (arrow.Record, error) {
	axes := make([][]int64, len(a.schema.Dims))
	total := 1
	for i, d := range a.schema.Dims {
		c := coords[d.Name]
		for v := d.Domain[0]; v <= d.Domain[1]; v++ {
			if c.Match(v) {
				axes[i] = append(axes[i], v)
			}
		}
		total *= len(axes[i])
	}

	stored := make(map[string]int, len(rows))
	var buf []byte
	for _, r := range rows {
		buf = a.coordKey(buf, all, r)
		stored[string(buf)] = r
	}

	// Row-major walks the last axis fastest; col-major the first.
	nd := len(axes)
	vals := make([][]int64, nd)
	for i := range vals {
		vals[i] = make([]int64, 0, total)
	}
	src := make([]int, 0, total)
	pos := make([]int, nd)
	for n := 0; n < total; n++ {
		buf = buf[:0]
		for i := range axes {
			v := axes[i][pos[i]]
			vals[i] = append(vals[i], v)
			buf = binary.BigEndian.AppendUint64(buf, uint64(v))
		}
		if r, ok := stored[string(buf)]; ok {
			src = append(src, r)
		} else {
			src = append(src, -1)
		}
		advance(pos, axes, native == order.ColMajor)
	}

	cols := make([]arrow.Array, 0, all.NumCols())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for i, d := range a.schema.Dims {
		col, err := arrowutil.NewInts(a.store.mem, d.Type.ArrowType(), vals[i])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build coordinates")
		}
		cols = append(cols, col)
	}
	for i := range a.schema.Attrs {
		col, err := arrowutil.Gather(a.store.mem, all.Column(nd+i), src, arrowutil.FillZero)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to gather cells")
		}
		cols = append(cols, col)
	}
	return array.NewRecord(a.arrowSchema, cols, int64(total)), nil
}

// advance steps pos to the next cell like an odometer.
func advance(pos []int, axes [][]int64, firstFastest bool) {
	for k := range pos {
		i := len(pos) - 1 - k
		if firstFastest {
			i = k
		}
		pos[i]++
		if pos[i] < len(axes[i]) {
			return
		}
		pos[i] = 0
	}
}
