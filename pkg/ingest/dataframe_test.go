package ingest

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/arraystore/pkg/config"
	"github.com/ajitpratap0/arraystore/pkg/datatype"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/source"
	"github.com/ajitpratap0/arraystore/pkg/store"
)

func stringArray(vals ...string) arrow.Array {
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewArray()
}

func int32Array(vals ...int32) arrow.Array {
	b := array.NewInt32Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewArray()
}

func int64Array(vals ...int64) arrow.Array {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewArray()
}

func column(t *testing.T, name string, arr arrow.Array) source.Column {
	t.Cleanup(arr.Release)
	return source.Column{Name: name, Value: source.NewPrimitive(arr)}
}

func table(t *testing.T, cols ...source.Column) *source.Table {
	t.Helper()
	tbl, err := source.NewTable(cols...)
	require.NoError(t, err)
	return tbl
}

func readAll(t *testing.T, st *store.Store, uri, order string) arrow.Record {
	t.Helper()
	rec, err := openRead(t, st, uri).Read(context.Background(), store.ReadOptions{ResultOrder: order})
	require.NoError(t, err)
	t.Cleanup(rec.Release)
	return rec
}

func col(rec arrow.Record, name string) arrow.Array {
	idx := rec.Schema().FieldIndices(name)
	return rec.Column(idx[0])
}

func TestCreateFromTableAddsJoinID(t *testing.T) {
	in, st := newTestIngester(t)
	tbl := table(t,
		column(t, "name", stringArray("a", "b", "c", "d")),
		column(t, "score", float64Array([]float64{0.5, 1, 1.5, 2})),
		source.Column{Name: "group", Value: source.NewCategoricalValues([]int32{1, -1, 0, 1}, []any{0.25, 0.75})},
		source.Column{Name: "label", Value: source.NewCategoricalValues([]int32{-1, 0, 0, 1}, []any{"lo", "hi"})},
	)

	rep, err := in.CreateFromTable(context.Background(), "obs", tbl, nil, config.DefaultCreateOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(4), rep.Rows)

	arr := openRead(t, st, "obs")
	assert.Equal(t, store.DataFrame, arr.ObjectType())
	assert.False(t, arr.Indexed())
	assert.Equal(t, []string{store.JoinID}, arr.Schema().DimNames())
	assert.Equal(t, []string{"name", "score", "group", "label"}, arr.Schema().AttrNames())
	assert.Equal(t, [2]int64{0, MaxJoinID}, arr.Schema().Dims[0].Domain)

	rec := readAll(t, st, "obs", "rowid-ordered")
	assert.Equal(t, []int64{0, 1, 2, 3}, col(rec, store.JoinID).(*array.Int64).Int64Values())
	name := col(rec, "name").(*array.LargeString)
	assert.Equal(t, "c", name.Value(2))

	group := col(rec, "group").(*array.Float64)
	assert.Equal(t, 0.75, group.Value(0))
	assert.True(t, group.IsNull(1))
	assert.True(t, math.IsNaN(group.Value(1)))

	label := col(rec, "label").(*array.LargeString)
	assert.True(t, label.IsNull(0))
	assert.Equal(t, "", label.Value(0))
	assert.Equal(t, "hi", label.Value(3))

	_, err = arr.Read(context.Background(), store.ReadOptions{ResultOrder: "row-major"})
	assert.ErrorIs(t, err, errors.ErrUnrecognizedOrder)
}

func TestCategoricalMissingBoundary(t *testing.T) {
	codes := []int32{0, -1, 1}
	tests := []struct {
		name       string
		categories []any
		wantErr    bool
	}{
		{"int categories", []any{int64(10), int64(20)}, true},
		{"float categories", []any{1.5, 2.5}, false},
		{"string categories", []any{"x", "y"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, st := newTestIngester(t)
			tbl := table(t, source.Column{Name: "c", Value: source.NewCategoricalValues(codes, tt.categories)})
			_, err := in.CreateFromTable(context.Background(), "df", tbl, nil, config.DefaultCreateOptions())
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrUnrepresentableType)
				ok, err := st.Exists(context.Background(), "df")
				require.NoError(t, err)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			rec := readAll(t, st, "df", "")
			c := col(rec, "c")
			assert.Equal(t, []bool{false, true, false}, []bool{c.IsNull(0), c.IsNull(1), c.IsNull(2)})
		})
	}
}

func TestCreateFromTableValidation(t *testing.T) {
	tests := []struct {
		name  string
		cols  func(t *testing.T) []source.Column
		index Index
	}{
		{
			name:  "reserved prefix",
			cols:  func(t *testing.T) []source.Column { return []source.Column{column(t, "__x", int32Array(1))} },
			index: Index{},
		},
		{
			name:  "joinid not int64",
			cols:  func(t *testing.T) []source.Column { return []source.Column{column(t, "joinid", int32Array(1))} },
			index: Index{},
		},
		{
			name:  "missing index column",
			cols:  func(t *testing.T) []source.Column { return []source.Column{column(t, "a", int32Array(1))} },
			index: Index{Columns: []string{"b"}},
		},
		{
			name: "bool index column",
			cols: func(t *testing.T) []source.Column {
				return []source.Column{{Name: "flag", Value: source.NewCategoricalValues([]int32{0}, []any{true})}}
			},
			index: Index{Columns: []string{"flag"}},
		},
		{
			name:  "no index columns",
			cols:  func(t *testing.T) []source.Column { return []source.Column{column(t, "a", int32Array(1))} },
			index: Index{Columns: []string{}},
		},
		{
			name:  "duplicate index column",
			cols:  func(t *testing.T) []source.Column { return []source.Column{column(t, "a", int32Array(1))} },
			index: Index{Columns: []string{"a", "a"}},
		},
		{
			name:  "string domain",
			cols:  func(t *testing.T) []source.Column { return []source.Column{column(t, "s", stringArray("q"))} },
			index: Index{Columns: []string{"s"}, Domains: map[string][2]int64{"s": {0, 1}}},
		},
		{
			name:  "negative joinid domain",
			cols:  func(t *testing.T) []source.Column { return []source.Column{column(t, "a", int32Array(1))} },
			index: Index{Domains: map[string][2]int64{store.JoinID: {-1, 10}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, st := newTestIngester(t)
			_, err := in.CreateDataFrame(context.Background(), "bad", table(t, tt.cols(t)...), tt.index, config.DefaultCreateOptions())
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), "got %v", err)
			ok, err := st.Exists(context.Background(), "bad")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestDataFrameSchemaDomains(t *testing.T) {
	as := arrow.NewSchema([]arrow.Field{
		{Name: "i8", Type: arrow.PrimitiveTypes.Int8},
		{Name: "i64", Type: arrow.PrimitiveTypes.Int64},
		{Name: "u16", Type: arrow.PrimitiveTypes.Uint16},
		{Name: "s", Type: arrow.BinaryTypes.LargeString},
		{Name: "f", Type: arrow.PrimitiveTypes.Float32},
		{Name: store.JoinID, Type: arrow.PrimitiveTypes.Int64},
		{Name: "v", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)
	opts := config.DefaultCreateOptions()
	idx := Index{
		Columns: []string{"i8", "i64", "u16", "s", "f", store.JoinID},
		Domains: map[string][2]int64{"u16": {0, 99}},
	}

	schema, err := dataFrameSchema(as, idx, opts)
	require.NoError(t, err)
	require.Len(t, schema.Dims, 6)
	require.NoError(t, schema.Validate())

	want := []store.Dim{
		{Name: "i8", Type: datatype.Int8, Domain: [2]int64{-128, 126}, Extent: 64},
		{Name: "i64", Type: datatype.Int64, Domain: [2]int64{math.MinInt64, math.MaxInt64 - 1}, Extent: 2048},
		{Name: "u16", Type: datatype.Uint16, Domain: [2]int64{0, 99}, Extent: 100},
		{Name: "s", Type: datatype.String, Extent: 2048},
		{Name: "f", Type: datatype.Float32, Extent: 2048},
		{Name: store.JoinID, Type: datatype.Int64, Domain: [2]int64{0, MaxJoinID}, Extent: 2048},
	}
	assert.Equal(t, want, schema.Dims)
	assert.Equal(t, []store.Attr{{Name: "v", Type: datatype.Bool, Nullable: true}}, schema.Attrs)
	assert.True(t, schema.Sparse)
}

func TestMultiIndexDataFrame(t *testing.T) {
	in, st := newTestIngester(t)
	tbl := table(t,
		column(t, "gene", stringArray("b", "a", "b", "a")),
		column(t, "value", float64Array([]float64{1, 2, 3, 4})),
	)
	_, err := in.CreateFromTable(context.Background(), "var", tbl, []string{"gene", store.JoinID}, config.DefaultCreateOptions())
	require.NoError(t, err)

	arr := openRead(t, st, "var")
	assert.True(t, arr.Indexed())

	rec := readAll(t, st, "var", "row-major")
	assert.Equal(t, []string{"gene", store.JoinID, "value"}, []string{
		rec.ColumnName(0), rec.ColumnName(1), rec.ColumnName(2)})
	assert.Equal(t, []int64{1, 3, 0, 2}, col(rec, store.JoinID).(*array.Int64).Int64Values())
	assert.Equal(t, []float64{2, 4, 1, 3}, col(rec, "value").(*array.Float64).Float64Values())
}

func TestTableChunking(t *testing.T) {
	const n = 100
	ids := make([]float64, n)
	for i := range ids {
		ids[i] = float64(i)
	}

	for _, goal := range []int{1, 10, 1000} {
		t.Run(fmt.Sprintf("goal=%d", goal), func(t *testing.T) {
			in, st := newTestIngester(t)
			tbl := table(t, column(t, "x", float64Array(ids)))
			rep, err := in.CreateFromTable(context.Background(), "df", tbl, nil, options(t, map[string]any{"goal_chunk_nnz": goal}))
			require.NoError(t, err)

			// two columns: x and the added joinid
			perChunk := max(1, goal/2)
			assert.Equal(t, (n+perChunk-1)/perChunk, rep.Chunks)
			rec := readAll(t, st, "df", "rowid-ordered")
			assert.Equal(t, ids, col(rec, "x").(*array.Float64).Float64Values())
		})
	}
}

func TestWriteTableAppends(t *testing.T) {
	in, st := newTestIngester(t)
	ctx := context.Background()
	tbl := table(t, column(t, "x", int32Array(1, 2, 3)))
	_, err := in.CreateFromTable(ctx, "df", tbl, nil, config.DefaultCreateOptions())
	require.NoError(t, err)

	arr, err := st.Open(ctx, "df", store.Write)
	require.NoError(t, err)
	defer arr.Close()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "x", Type: arrow.PrimitiveTypes.Int32},
		{Name: store.JoinID, Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	b.Field(0).(*array.Int32Builder).AppendValues([]int32{4, 5}, nil)
	b.Field(1).(*array.Int64Builder).AppendValues([]int64{3, 4}, nil)
	rec := b.NewRecord()
	defer rec.Release()

	rep, err := WriteTable(ctx, arr, rec, config.DefaultCreateOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Fragments)

	out := readAll(t, st, "df", "rowid-ordered")
	assert.Equal(t, []int32{1, 2, 3, 4, 5}, col(out, "x").(*array.Int32).Int32Values())

	// a column the array does not have
	bad := array.NewRecord(arrow.NewSchema([]arrow.Field{{Name: "y", Type: arrow.PrimitiveTypes.Int32}}, nil),
		[]arrow.Array{rec.Column(0)}, 2)
	defer bad.Release()
	_, err = in.WriteTable(ctx, arr, bad, config.DefaultCreateOptions())
	assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
}

func TestTableCapBoundary(t *testing.T) {
	opts := options(t, map[string]any{"remote_cap_nbytes": 1})
	in, _ := newTestIngester(t)

	empty := table(t, column(t, "x", int32Array()))
	_, err := in.CreateFromTable(context.Background(), "empty", empty, nil, opts)
	require.NoError(t, err)

	one := table(t, column(t, "x", int32Array(7)))
	rep, err := in.CreateFromTable(context.Background(), "one", one, nil, opts)
	require.ErrorIs(t, err, errors.ErrCapacityExceeded)
	assert.Zero(t, rep.Fragments)
}

func TestTableCapErrorNamesSourceRow(t *testing.T) {
	vals := []string{"a", "b", "c", "d", "e", "f", string(make([]byte, 500)), "h"}
	in, st := newTestIngester(t)
	opts := options(t, map[string]any{"goal_chunk_nnz": 4, "remote_cap_nbytes": 200})

	rep, err := in.CreateFromTable(context.Background(), "df", table(t, column(t, "s", stringArray(vals...))), nil, opts)
	require.ErrorIs(t, err, errors.ErrCapacityExceeded)
	assert.Equal(t, 3, rep.Fragments)

	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, int64(6), e.Detail("row"))
	assert.Equal(t, 3, e.Detail("chunk"))
	assert.Contains(t, err.Error(), "row 6 ")

	out := readAll(t, st, "df", "rowid-ordered")
	assert.Equal(t, int64(6), out.NumRows())
}

func TestCreateFromTableRejectsInvalidOptions(t *testing.T) {
	in, _ := newTestIngester(t)
	opts := config.DefaultCreateOptions()
	opts.GoalChunkNNZ = 0
	_, err := in.CreateFromTable(context.Background(), "df", table(t, column(t, "x", int32Array(1))), nil, opts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = CreateFromTable(context.Background(), newTestStore(t), "df", table(t, column(t, "x", int32Array(1))), nil, config.DefaultCreateOptions())
	assert.NoError(t, err)
}
