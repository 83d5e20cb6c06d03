package ingest

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/arraystore/pkg/arrowutil"
	"github.com/ajitpratap0/arraystore/pkg/chunk"
	"github.com/ajitpratap0/arraystore/pkg/config"
	"github.com/ajitpratap0/arraystore/pkg/datatype"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/source"
	"github.com/ajitpratap0/arraystore/pkg/store"
)

// DataAttr is the value attribute of an ND array.
const DataAttr = "data"

// DimName returns the name of dimension i of an ND array.
func DimName(i int) string {
	return fmt.Sprintf("dim_%d", i)
}

// CreateFromMatrix creates an ND array of the given kind holding m.
//
// Sparse targets store the entries of sparse matrices as given and the
// nonzero cells of dense ones. Dense targets store every cell; for sparse
// inputs the unstored cells of each chunk are written as explicit zeros.
// A dense target needs at least one row and one column.
func (in *Ingester) CreateFromMatrix(ctx context.Context, uri string, kind store.ObjectType,
	m source.Matrix, opts config.CreateOptions) (rep Report, err error) {
	ctx, s := in.begin(ctx, "create_from_matrix", uri, kind)
	defer func() { rep = s.end(err) }()

	if err := opts.Validate(); err != nil {
		return s.report, err
	}
	if kind != store.SparseNDArray && kind != store.DenseNDArray {
		return s.report, errors.Newf(errors.ErrorTypeValidation, "cannot create a %s from a matrix", kind).
			WithDetail("object_type", string(kind))
	}

	rows, cols := m.Shape()
	if kind == store.DenseNDArray && (rows == 0 || cols == 0) {
		return s.report, errors.Newf(errors.ErrorTypeValidation,
			"cannot create a %s with an empty %dx%d shape", kind, rows, cols).
			WithDetail("rows", rows).WithDetail("cols", cols)
	}

	values, err := in.normalizer.Value(source.FromArrow(m.Values()))
	if err != nil {
		return s.report, err
	}
	defer values.Release()

	schema := matrixSchema(kind, rows, cols, values.Type, values.Array.NullN() > 0, opts)

	err = in.create(ctx, s, uri, kind, schema, opts, func(arr *store.Array) error {
		cells := newCellBuilder(in.mem, arr.ArrowSchema(), values.Array, kind == store.DenseNDArray)
		return in.writeChunks(ctx, s, arr, chunk.ForMatrix(m), opts, true, cells.materializer(m))
	})
	return s.report, err
}

func matrixSchema(kind store.ObjectType, rows, cols int, t datatype.TargetType, nullable bool,
	opts config.CreateOptions) *store.Schema {
	cell, tile := opts.Layouts()
	schema := &store.Schema{
		Attrs:            []store.Attr{{Name: DataAttr, Type: t, Nullable: nullable}},
		Sparse:           kind == store.SparseNDArray,
		AllowsDuplicates: kind == store.SparseNDArray && opts.AllowsDuplicates,
		CellOrder:        cell,
		TileOrder:        tile,
		Capacity:         opts.Capacity,
	}
	for i, n := range []int{rows, cols} {
		hi := int64(max(n, 1) - 1)
		schema.Dims = append(schema.Dims, store.Dim{
			Name:   DimName(i),
			Type:   datatype.Int64,
			Domain: [2]int64{0, hi},
			Extent: tileExtent(0, hi, opts.DataFrameDimTile),
		})
	}
	return schema
}

// cellBuilder collects (row, col, value index) cells for one chunk. A
// negative value index is an unstored cell and is written as zero.
type cellBuilder struct {
	mem    memory.Allocator
	schema *arrow.Schema
	values arrow.Array
	dense  bool

	rows, cols []int64
	idx        []int
}

func newCellBuilder(mem memory.Allocator, schema *arrow.Schema, values arrow.Array, dense bool) *cellBuilder {
	return &cellBuilder{mem: mem, schema: schema, values: values, dense: dense}
}

func (b *cellBuilder) add(r, c int64, k int) {
	b.rows = append(b.rows, r)
	b.cols = append(b.cols, c)
	b.idx = append(b.idx, k)
}

// record returns the collected cells and resets the builder.
func (b *cellBuilder) record() (arrow.Record, error) {
	defer func() {
		b.rows, b.cols, b.idx = b.rows[:0], b.cols[:0], b.idx[:0]
	}()

	data, err := arrowutil.Gather(b.mem, b.values, b.idx, arrowutil.FillZero)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to gather matrix values")
	}
	defer data.Release()
	dim0 := arrowutil.NewInt64(b.mem, b.rows)
	defer dim0.Release()
	dim1 := arrowutil.NewInt64(b.mem, b.cols)
	defer dim1.Release()

	return array.NewRecord(b.schema, []arrow.Array{dim0, dim1, data}, int64(len(b.idx))), nil
}

// materializer returns the chunk builder for m's layout.
func (b *cellBuilder) materializer(m source.Matrix) build {
	switch mm := m.(type) {
	case *source.Dense:
		return b.dense2D(mm)
	case *source.Compressed:
		return b.compressed(mm.Format == source.LayoutCSC, mm.Minor(), mm.Indptr, mm.Indices, nil)
	case *source.COO:
		perm, indptr := mm.RowOrder()
		return b.compressed(false, mm.Cols, indptr, mm.ColIdx, perm)
	}
	return func(chunk.Chunk) (arrow.Record, error) {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported matrix layout %q", m.Layout())
	}
}

func (b *cellBuilder) dense2D(m *source.Dense) build {
	return func(c chunk.Chunk) (arrow.Record, error) {
		for r := c.Lo; r < c.Hi; r++ {
			for j := 0; j < m.Cols; j++ {
				k := r*m.Cols + j
				if b.dense || !arrowutil.IsZero(b.values, k) {
					b.add(int64(r), int64(j), k)
				}
			}
		}
		return b.record()
	}
}

// compressed handles CSR, CSC and row-sorted COO. indices holds minor
// positions; perm, when set, maps sorted positions to value positions.
func (b *cellBuilder) compressed(byColumn bool, minor int, indptr, indices []int64, perm []int) build {
	var slots []int
	if b.dense {
		slots = make([]int, minor)
	}
	emit := func(major, j int64, k int) {
		if byColumn {
			b.add(j, major, k)
		} else {
			b.add(major, j, k)
		}
	}
	return func(c chunk.Chunk) (arrow.Record, error) {
		for major := c.Lo; major < c.Hi; major++ {
			if b.dense {
				for j := range slots {
					slots[j] = -1
				}
			}
			for p := indptr[major]; p < indptr[major+1]; p++ {
				k := int(p)
				if perm != nil {
					k = perm[p]
				}
				j := indices[k]
				if b.dense {
					slots[j] = k
				} else {
					emit(int64(major), j, k)
				}
			}
			if b.dense {
				for j, k := range slots {
					emit(int64(major), int64(j), k)
				}
			}
		}
		return b.record()
	}
}
