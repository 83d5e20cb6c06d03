package store

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arraystore/pkg/compression"
	"github.com/ajitpratap0/arraystore/pkg/datatype"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/formats/columnar"
	"github.com/ajitpratap0/arraystore/pkg/store/backend"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(backend.NewMem(), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func matrixSchema(sparse bool, rows, cols int64) *Schema {
	return &Schema{
		Dims: []Dim{
			{Name: "dim_0", Type: datatype.Int64, Domain: [2]int64{0, rows - 1}, Extent: 64},
			{Name: "dim_1", Type: datatype.Int64, Domain: [2]int64{0, cols - 1}, Extent: 64},
		},
		Attrs:  []Attr{{Name: "data", Type: datatype.Float64}},
		Sparse: sparse,
	}
}

// cells builds a dim_0, dim_1, data record.
func cells(t *testing.T, i, j []int64, v []float64) arrow.Record {
	t.Helper()
	mem := memory.DefaultAllocator
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "dim_0", Type: arrow.PrimitiveTypes.Int64},
		{Name: "dim_1", Type: arrow.PrimitiveTypes.Int64},
		{Name: "data", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues(i, nil)
	b.Field(1).(*array.Int64Builder).AppendValues(j, nil)
	b.Field(2).(*array.Float64Builder).AppendValues(v, nil)
	return b.NewRecord()
}

func commit(t *testing.T, a *Array, rec arrow.Record) CommitResult {
	t.Helper()
	defer rec.Release()
	res, err := a.Commit(context.Background(), rec)
	require.NoError(t, err)
	return res
}

func int64s(col arrow.Array) []int64 {
	return col.(*array.Int64).Int64Values()
}

func float64s(col arrow.Array) []float64 {
	return col.(*array.Float64).Float64Values()
}

func TestCreateOpenLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.Create(ctx, "exp/X", SparseNDArray, matrixSchema(true, 4, 4), DefaultFragmentOptions())
	require.NoError(t, err)
	assert.Equal(t, Write, a.Mode())
	assert.Equal(t, SparseNDArray, a.ObjectType())
	assert.Equal(t, EncodingVersion, a.Metadata()[MetaEncodingVersion])
	require.NoError(t, a.SetMetadata(ctx, "origin", "test"))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err = s.Create(ctx, "exp/X", SparseNDArray, matrixSchema(true, 4, 4), DefaultFragmentOptions())
	assert.ErrorIs(t, err, errors.ErrConflict)

	ok, err := s.Exists(ctx, "/exp/X/")
	require.NoError(t, err)
	assert.True(t, ok)

	r, err := s.Open(ctx, "exp/X", Read)
	require.NoError(t, err)
	assert.Equal(t, "test", r.Metadata()["origin"])
	assert.Equal(t, int64(DefaultCapacity), r.Schema().Capacity)
	assert.Equal(t, "row-major", string(r.Schema().CellOrder))

	_, err = r.Commit(ctx, cells(t, nil, nil, nil))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = s.Open(ctx, "exp/missing", Read)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "exp/X"))
	ok, err = s.Exists(ctx, "exp/X")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReservedMetadataAndNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.Create(ctx, "m", SparseNDArray, matrixSchema(true, 2, 2), FragmentOptions{})
	require.NoError(t, err)
	for _, key := range []string{MetaObjectType, MetaEncodingVersion, "__internal", ""} {
		err := a.SetMetadata(ctx, key, "x")
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), key)
	}
	assert.Equal(t, string(SparseNDArray), a.Metadata()[MetaObjectType])

	bad := matrixSchema(true, 2, 2)
	bad.Attrs[0].Name = "__data"
	_, err = s.Create(ctx, "n", SparseNDArray, bad, FragmentOptions{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = s.Create(ctx, "x/__fragments", SparseNDArray, matrixSchema(true, 2, 2), FragmentOptions{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = s.Create(ctx, "y", "Collection", matrixSchema(true, 2, 2), FragmentOptions{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = s.Create(ctx, "z", SparseNDArray, matrixSchema(true, 2, 2), FragmentOptions{Format: columnar.CSV})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSplitColumnNames(t *testing.T) {
	schema := &Schema{
		Dims:  []Dim{{Name: "a", Type: datatype.Int64}},
		Attrs: []Attr{{Name: "b", Type: datatype.Float32}},
	}

	dims, attrs := SplitColumnNames(schema, []string{"a", "z"})
	assert.Equal(t, []string{"a"}, dims)
	assert.NotNil(t, attrs)
	assert.Empty(t, attrs)

	dims, attrs = SplitColumnNames(schema, nil)
	assert.Nil(t, dims)
	assert.Nil(t, attrs)

	dims, attrs = SplitColumnNames(schema, []string{"b", "z", "a", "b"})
	assert.Equal(t, []string{"a"}, dims)
	assert.Equal(t, []string{"b", "b"}, attrs)

	dims, attrs = SplitColumnNames(schema, []string{})
	assert.Equal(t, []string{}, dims)
	assert.Equal(t, []string{}, attrs)
}

func TestCommitValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.Create(ctx, "v", SparseNDArray, matrixSchema(true, 3, 3), DefaultFragmentOptions())
	require.NoError(t, err)

	t.Run("wrong type", func(t *testing.T) {
		schema := arrow.NewSchema([]arrow.Field{
			{Name: "dim_0", Type: arrow.PrimitiveTypes.Int64},
			{Name: "dim_1", Type: arrow.PrimitiveTypes.Int64},
			{Name: "data", Type: arrow.PrimitiveTypes.Float32},
		}, nil)
		b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
		defer b.Release()
		rec := b.NewRecord()
		defer rec.Release()
		_, err := a.Commit(ctx, rec)
		assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
	})

	t.Run("unknown column", func(t *testing.T) {
		schema := arrow.NewSchema([]arrow.Field{{Name: "other", Type: arrow.PrimitiveTypes.Int64}}, nil)
		b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
		defer b.Release()
		rec := b.NewRecord()
		defer rec.Release()
		_, err := a.Commit(ctx, rec)
		assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
	})

	t.Run("missing attribute", func(t *testing.T) {
		rec := cells(t, []int64{0}, []int64{0}, []float64{1})
		defer rec.Release()
		schema := arrow.NewSchema(rec.Schema().Fields()[:2], nil)
		noData := array.NewRecord(schema, rec.Columns()[:2], 1)
		defer noData.Release()
		_, err := a.Commit(ctx, noData)
		assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
	})

	t.Run("outside domain", func(t *testing.T) {
		_, err := a.Commit(ctx, cells(t, []int64{3}, []int64{0}, []float64{1}))
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		e, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, "dim_0", e.Detail("column"))
	})

	frags, err := a.Fragments(ctx)
	require.NoError(t, err)
	assert.Empty(t, frags)
}

func TestSparseRoundTrip(t *testing.T) {
	encodings := []FragmentOptions{
		{Format: columnar.Arrow, Compression: compression.Zstd},
		{Format: columnar.Arrow, Compression: compression.LZ4},
		{Format: columnar.Arrow, Compression: compression.None},
		{Format: columnar.Parquet, Compression: compression.Snappy},
	}
	for _, fo := range encodings {
		t.Run(string(fo.Format)+"/"+string(fo.Compression), func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)
			a, err := s.Create(ctx, "sp", SparseNDArray, matrixSchema(true, 10, 10), fo)
			require.NoError(t, err)

			first := commit(t, a, cells(t, []int64{5, 0}, []int64{1, 2}, []float64{1.5, 2.5}))
			assert.Equal(t, 0, first.Fragment.Seq)
			assert.Equal(t, fo.Format, first.Fragment.Format)
			second := commit(t, a, cells(t, []int64{9}, []int64{9}, []float64{-1}))
			assert.Equal(t, 1, second.Fragment.Seq)
			require.NoError(t, a.Close())

			r, err := s.Open(ctx, "sp", Read)
			require.NoError(t, err)
			got, err := r.Read(ctx, ReadOptions{})
			require.NoError(t, err)
			defer got.Release()

			assert.Equal(t, []int64{5, 0, 9}, int64s(got.Column(0)))
			assert.Equal(t, []int64{1, 2, 9}, int64s(got.Column(1)))
			assert.Equal(t, []float64{1.5, 2.5, -1}, float64s(got.Column(2)))

			nnz, err := r.NNZ(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), nnz)
		})
	}
}

func TestResultOrderAndProjection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.Create(ctx, "o", SparseNDArray, matrixSchema(true, 3, 3), DefaultFragmentOptions())
	require.NoError(t, err)
	commit(t, a, cells(t, []int64{1, 0, 1, 0}, []int64{0, 1, 1, 0}, []float64{10, 1, 11, 0}))

	rowMajor, err := a.Read(ctx, ReadOptions{ResultOrder: "row-major"})
	require.NoError(t, err)
	defer rowMajor.Release()
	assert.Equal(t, []float64{0, 1, 10, 11}, float64s(rowMajor.Column(2)))

	colMajor, err := a.Read(ctx, ReadOptions{ResultOrder: "col-major"})
	require.NoError(t, err)
	defer colMajor.Release()
	assert.Equal(t, []float64{0, 10, 1, 11}, float64s(colMajor.Column(2)))

	_, err = a.Read(ctx, ReadOptions{ResultOrder: "rowid-ordered"})
	assert.ErrorIs(t, err, errors.ErrUnrecognizedOrder)

	proj, err := a.Read(ctx, ReadOptions{ColumnNames: []string{"data", "nope", "dim_1"}, ResultOrder: "row-major"})
	require.NoError(t, err)
	defer proj.Release()
	require.Equal(t, int64(2), proj.NumCols())
	assert.Equal(t, "dim_1", proj.ColumnName(0))
	assert.Equal(t, "data", proj.ColumnName(1))
}

func TestDuplicatesLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.Create(ctx, "d", SparseNDArray, matrixSchema(true, 3, 3), DefaultFragmentOptions())
	require.NoError(t, err)
	commit(t, a, cells(t, []int64{0, 1}, []int64{0, 1}, []float64{1, 2}))
	commit(t, a, cells(t, []int64{0}, []int64{0}, []float64{100}))

	got, err := a.Read(ctx, ReadOptions{})
	require.NoError(t, err)
	defer got.Release()
	assert.Equal(t, []float64{2, 100}, float64s(got.Column(2)))

	dup := matrixSchema(true, 3, 3)
	dup.AllowsDuplicates = true
	b, err := s.Create(ctx, "dup", SparseNDArray, dup, DefaultFragmentOptions())
	require.NoError(t, err)
	commit(t, b, cells(t, []int64{0, 0}, []int64{0, 0}, []float64{1, 2}))
	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCoordinateConstraints(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.Create(ctx, "c", SparseNDArray, matrixSchema(true, 10, 10), DefaultFragmentOptions())
	require.NoError(t, err)
	commit(t, a, cells(t, []int64{0, 2, 4, 6, 8}, []int64{1, 1, 1, 1, 1}, []float64{0, 2, 4, 6, 8}))

	got, err := a.Read(ctx, ReadOptions{Coords: map[string]Constraint{
		"dim_0": {Points: []int64{0}, Ranges: [][2]int64{{4, 6}}},
	}})
	require.NoError(t, err)
	defer got.Release()
	assert.Equal(t, []float64{0, 4, 6}, float64s(got.Column(2)))

	_, err = a.Read(ctx, ReadOptions{Coords: map[string]Constraint{"data": {Points: []int64{1}}}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	dom, err := a.NonEmptyDomain(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][2]int64{"dim_0": {0, 8}, "dim_1": {1, 1}}, dom)
}

func TestDenseZeroFill(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.Create(ctx, "dn", DenseNDArray, matrixSchema(false, 2, 3), DefaultFragmentOptions())
	require.NoError(t, err)
	commit(t, a, cells(t, []int64{1, 0}, []int64{2, 1}, []float64{12, 1}))

	got, err := a.Read(ctx, ReadOptions{})
	require.NoError(t, err)
	defer got.Release()
	assert.Equal(t, []int64{0, 0, 0, 1, 1, 1}, int64s(got.Column(0)))
	assert.Equal(t, []int64{0, 1, 2, 0, 1, 2}, int64s(got.Column(1)))
	assert.Equal(t, []float64{0, 1, 0, 0, 0, 12}, float64s(got.Column(2)))

	col, err := a.Read(ctx, ReadOptions{ResultOrder: "col-major", Coords: map[string]Constraint{"dim_1": {Points: []int64{1, 2}}}})
	require.NoError(t, err)
	defer col.Release()
	assert.Equal(t, []int64{0, 1, 0, 1}, int64s(col.Column(0)))
	assert.Equal(t, []float64{1, 0, 0, 12}, float64s(col.Column(2)))

	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	nnz, err := a.NNZ(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), nnz)
}

func TestEmptyCommitProducesFragment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.Create(ctx, "e", SparseNDArray, matrixSchema(true, 10, 89), DefaultFragmentOptions())
	require.NoError(t, err)

	res := commit(t, a, cells(t, nil, nil, nil))
	assert.Equal(t, int64(0), res.Rows)

	frags, err := a.Fragments(ctx)
	require.NoError(t, err)
	assert.Len(t, frags, 1)

	got, err := a.Read(ctx, ReadOptions{})
	require.NoError(t, err)
	defer got.Release()
	assert.Equal(t, int64(0), got.NumRows())

	dom, err := a.NonEmptyDomain(ctx)
	require.NoError(t, err)
	assert.Empty(t, dom)
}

func TestReopenForWriteContinuesSequence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.Create(ctx, "w", SparseNDArray, matrixSchema(true, 4, 4), DefaultFragmentOptions())
	require.NoError(t, err)
	commit(t, a, cells(t, []int64{0}, []int64{0}, []float64{1}))
	commit(t, a, cells(t, []int64{1}, []int64{1}, []float64{2}))
	require.NoError(t, a.Close())

	w, err := s.Open(ctx, "w", Write)
	require.NoError(t, err)
	res := commit(t, w, cells(t, []int64{2}, []int64{2}, []float64{3}))
	assert.Equal(t, 2, res.Fragment.Seq)
}

func TestDataFrameOrderVocabulary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	schema := &Schema{
		Dims:   []Dim{{Name: JoinID, Type: datatype.Int64, Domain: [2]int64{0, 100}}},
		Attrs:  []Attr{{Name: "label", Type: datatype.String, Nullable: true}},
		Sparse: true,
	}
	a, err := s.Create(ctx, "df", DataFrame, schema, DefaultFragmentOptions())
	require.NoError(t, err)
	assert.False(t, a.Indexed())

	b := array.NewRecordBuilder(memory.DefaultAllocator, arrow.NewSchema([]arrow.Field{
		{Name: JoinID, Type: arrow.PrimitiveTypes.Int64},
	}, nil))
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{3, 1, 2}, nil)
	commit(t, a, b.NewRecord())

	got, err := a.Read(ctx, ReadOptions{ResultOrder: "rowid-ordered"})
	require.NoError(t, err)
	defer got.Release()
	assert.Equal(t, []int64{1, 2, 3}, int64s(got.Column(0)))
	assert.Equal(t, 3, got.Column(1).NullN())

	_, err = a.Read(ctx, ReadOptions{ResultOrder: "row-major"})
	assert.ErrorIs(t, err, errors.ErrUnrecognizedOrder)
}

func TestFragmentNames(t *testing.T) {
	name := fragmentName(7, FragmentOptions{Format: columnar.Arrow, Compression: compression.Zstd})
	f, err := parseFragment("arr/__fragments/" + name)
	require.NoError(t, err)
	assert.Equal(t, 7, f.Seq)
	assert.Equal(t, columnar.Arrow, f.Format)
	assert.Equal(t, compression.Zstd, f.Compression)
	assert.Regexp(t, `^00000007-[0-9A-Za-z]{27}\.arrow\.zst$`, name)

	name = fragmentName(12, FragmentOptions{Format: columnar.Parquet, Compression: compression.Zstd})
	assert.Regexp(t, `\.parquet$`, name)

	_, err = parseFragment("arr/__fragments/garbage.arrow")
	assert.Error(t, err)
}
