package normalize

import (
	stderrors "errors"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowf16 "github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arraystore/pkg/datatype"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/source"
)

func newNormalizer() *Normalizer {
	return New(memory.NewGoAllocator(), zap.NewNop())
}

func int64Array(vals ...int64) arrow.Array {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	b.AppendValues(vals, nil)
	return b.NewArray()
}

func float64Array(vals ...float64) arrow.Array {
	b := array.NewFloat64Builder(memory.DefaultAllocator)
	b.AppendValues(vals, nil)
	return b.NewArray()
}

func TestFloat16Widens(t *testing.T) {
	b := array.NewFloat16Builder(memory.DefaultAllocator)
	b.AppendValues([]arrowf16.Num{arrowf16.New(1.5), arrowf16.New(-2)}, nil)
	b.AppendNull()

	r, err := newNormalizer().Value(source.NewPrimitive(b.NewArray()))
	require.NoError(t, err)
	assert.Equal(t, datatype.Float32, r.Type)
	f := r.Array.(*array.Float32)
	assert.Equal(t, float32(1.5), f.Value(0))
	assert.Equal(t, float32(-2), f.Value(1))
	assert.True(t, f.IsNull(2))
}

func TestStoragePassThrough(t *testing.T) {
	arr := int64Array(1, 2, 3)
	r, err := newNormalizer().Value(source.NewPrimitive(arr))
	require.NoError(t, err)
	assert.Equal(t, datatype.Int64, r.Type)
	assert.Same(t, arr, r.Array)
}

func TestStringAndBinaryWiden(t *testing.T) {
	sb := array.NewStringBuilder(memory.DefaultAllocator)
	sb.AppendValues([]string{"x", "y"}, []bool{true, false})
	r, err := newNormalizer().Value(source.NewPrimitive(sb.NewArray()))
	require.NoError(t, err)
	assert.Equal(t, datatype.String, r.Type)
	assert.Equal(t, arrow.LARGE_STRING, r.Array.DataType().ID())
	assert.Equal(t, 1, r.Array.NullN())

	bb := array.NewBinaryBuilder(memory.DefaultAllocator, arrow.BinaryTypes.Binary)
	bb.Append([]byte{1, 2})
	r, err = newNormalizer().Value(source.NewPrimitive(bb.NewArray()))
	require.NoError(t, err)
	assert.Equal(t, datatype.Bytes, r.Type)
	assert.Equal(t, []byte{1, 2}, r.Array.(*array.LargeBinary).Value(0))
}

func TestUnsupportedPrimitive(t *testing.T) {
	b := array.NewTimestampBuilder(memory.DefaultAllocator, &arrow.TimestampType{Unit: arrow.Second})
	b.Append(1)
	_, err := newNormalizer().Value(source.NewPrimitive(b.NewArray()))
	assert.True(t, stderrors.Is(err, errors.ErrUnrepresentableType))
}

func TestCategoricalNumeric(t *testing.T) {
	codes := []int32{1, 0, 1, -1}

	t.Run("int categories with missing fail", func(t *testing.T) {
		_, err := newNormalizer().Value(source.NewCategorical(codes, int64Array(10, 20)))
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, errors.ErrUnrepresentableType))
	})

	t.Run("int categories without missing", func(t *testing.T) {
		r, err := newNormalizer().Value(source.NewCategorical([]int32{1, 0, 1}, int64Array(10, 20)))
		require.NoError(t, err)
		assert.Equal(t, datatype.Int64, r.Type)
		assert.Equal(t, []int64{20, 10, 20}, r.Array.(*array.Int64).Int64Values())
	})

	t.Run("float categories with missing", func(t *testing.T) {
		r, err := newNormalizer().Value(source.NewCategorical(codes, float64Array(0.5, 1.5)))
		require.NoError(t, err)
		assert.Equal(t, datatype.Float64, r.Type)
		f := r.Array.(*array.Float64)
		assert.Equal(t, 1.5, f.Value(0))
		assert.Equal(t, 0.5, f.Value(1))
		assert.True(t, f.IsNull(3))
		assert.True(t, math.IsNaN(f.Float64Values()[3]))
	})

	t.Run("null category is missing", func(t *testing.T) {
		cb := array.NewInt64Builder(memory.DefaultAllocator)
		cb.Append(10)
		cb.AppendNull()
		cats := cb.NewArray()
		defer cats.Release()

		_, err := newNormalizer().Value(source.NewCategorical([]int32{0, 1}, cats))
		assert.True(t, stderrors.Is(err, errors.ErrUnrepresentableType), "got %v", err)

		// the untyped form of the same categories fails the same way
		_, err = newNormalizer().Value(source.NewCategoricalValues([]int32{0, 1}, []any{10, nil}))
		assert.True(t, stderrors.Is(err, errors.ErrUnrepresentableType), "got %v", err)
	})

	assert.Equal(t, []int32{1, 0, 1, -1}, codes)
}

func TestCategoricalMixedNumericIsExact(t *testing.T) {
	t.Run("large integer fails", func(t *testing.T) {
		_, err := newNormalizer().Value(source.NewCategoricalValues([]int32{0, 1}, []any{int64(1<<53 + 1), 2.5}))
		require.True(t, stderrors.Is(err, errors.ErrUnrepresentableType), "got %v", err)
		e, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, 0, e.Detail("category"))
	})

	t.Run("large unsigned fails", func(t *testing.T) {
		_, err := newNormalizer().Value(source.NewCategoricalValues([]int32{0}, []any{0.5, uint64(math.MaxUint64)}))
		assert.True(t, stderrors.Is(err, errors.ErrUnrepresentableType), "got %v", err)
	})

	t.Run("exact integers widen", func(t *testing.T) {
		r, err := newNormalizer().Value(source.NewCategoricalValues([]int32{0, 1, 2},
			[]any{int64(1 << 53), uint32(7), 2.5}))
		require.NoError(t, err)
		assert.Equal(t, datatype.Float64, r.Type)
		assert.Equal(t, []float64{1 << 53, 7, 2.5}, r.Array.(*array.Float64).Float64Values())
	})

	t.Run("integers with float32 widen to float64", func(t *testing.T) {
		r, err := newNormalizer().Value(source.NewCategoricalValues([]int32{0, 1}, []any{int32(1<<24 + 1), float32(0.5)}))
		require.NoError(t, err)
		assert.Equal(t, datatype.Float64, r.Type)
		assert.Equal(t, float64(1<<24+1), r.Array.(*array.Float64).Value(0))
	})
}

func TestCategoricalInferred(t *testing.T) {
	tests := []struct {
		name       string
		categories []any
		codes      []int32
		want       datatype.TargetType
		wantErr    bool
	}{
		{"bool", []any{true, false}, []int32{0, 1}, datatype.Bool, false},
		{"bool with missing", []any{true, false}, []int32{0, -1}, "", true},
		{"string with missing", []any{"a", "b"}, []int32{1, -1}, datatype.String, false},
		{"bytes", []any{[]byte("a")}, []int32{0}, datatype.Bytes, false},
		{"bytes with missing", []any{[]byte("a")}, []int32{-1}, "", true},
		{"ints", []any{1, int8(2)}, []int32{0, 1}, datatype.Int64, false},
		{"ints with missing", []any{1, 2}, []int32{-1}, "", true},
		{"uints", []any{uint8(1), uint16(2)}, []int32{1}, datatype.Uint64, false},
		{"mixed numeric", []any{1, 2.5}, []int32{0, -1}, datatype.Float64, false},
		{"float16", []any{float16.Fromfloat32(0.5)}, []int32{0}, datatype.Float32, false},
		{"opaque", []any{"a", 3, struct{}{}}, []int32{2, -1}, datatype.String, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := newNormalizer().Value(source.NewCategoricalValues(tt.codes, tt.categories))
			if tt.wantErr {
				assert.True(t, stderrors.Is(err, errors.ErrUnrepresentableType), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Type)
			assert.Equal(t, len(tt.codes), r.Array.Len())
			assert.True(t, arrow.TypeEqual(tt.want.ArrowType(), r.Array.DataType()))
		})
	}
}

func TestCategoricalStringMissingIsNull(t *testing.T) {
	r, err := newNormalizer().Value(source.NewCategoricalValues([]int32{1, -1, 0}, []any{"lo", "hi"}))
	require.NoError(t, err)
	s := r.Array.(*array.LargeString)
	assert.Equal(t, "hi", s.Value(0))
	assert.True(t, s.IsNull(1))
	assert.Equal(t, "", s.Value(1))
	assert.Equal(t, "lo", s.Value(2))
}

func TestCategoricalCodeOutOfRange(t *testing.T) {
	_, err := newNormalizer().Value(source.NewCategorical([]int32{2}, int64Array(1, 2)))
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestDictionaryArray(t *testing.T) {
	dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int8, ValueType: arrow.BinaryTypes.String}
	b := array.NewDictionaryBuilder(memory.DefaultAllocator, dt).(*array.BinaryDictionaryBuilder)
	require.NoError(t, b.AppendString("x"))
	require.NoError(t, b.AppendString("y"))
	b.AppendNull()
	require.NoError(t, b.AppendString("x"))

	r, err := newNormalizer().Value(source.NewPrimitive(b.NewArray()))
	require.NoError(t, err)
	assert.Equal(t, datatype.String, r.Type)
	s := r.Array.(*array.LargeString)
	assert.Equal(t, "y", s.Value(1))
	assert.True(t, s.IsNull(2))
	assert.Equal(t, "x", s.Value(3))
}

func TestOpaque(t *testing.T) {
	r, err := newNormalizer().Value(source.NewOpaque([]any{1, nil, "z"}))
	require.NoError(t, err)
	s := r.Array.(*array.LargeString)
	assert.Equal(t, "1", s.Value(0))
	assert.True(t, s.IsNull(1))
	assert.Equal(t, "z", s.Value(2))
}

func TestTablePreservesColumns(t *testing.T) {
	tbl, err := source.NewTable(
		source.Column{Name: "b", Value: source.NewPrimitive(int64Array(1, 2))},
		source.Column{Name: "a", Value: source.NewCategoricalValues([]int32{0, -1}, []any{"q"})},
	)
	require.NoError(t, err)

	rec, err := newNormalizer().Table(tbl)
	require.NoError(t, err)
	defer rec.Release()
	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, "b", rec.ColumnName(0))
	assert.Equal(t, "a", rec.ColumnName(1))
	assert.Equal(t, arrow.LARGE_STRING, rec.Column(1).DataType().ID())
}

func TestTableErrorNamesColumn(t *testing.T) {
	tbl, err := source.NewTable(
		source.Column{Name: "bad", Value: source.NewCategorical([]int32{-1}, int64Array(1))},
	)
	require.NoError(t, err)

	_, err = newNormalizer().Table(tbl)
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, "bad", e.Detail("column"))
}

func TestTargetTypeOf(t *testing.T) {
	tests := []struct {
		dt   arrow.DataType
		want datatype.TargetType
	}{
		{arrow.FixedWidthTypes.Float16, datatype.Float32},
		{arrow.BinaryTypes.String, datatype.String},
		{arrow.BinaryTypes.Binary, datatype.Bytes},
		{arrow.PrimitiveTypes.Uint32, datatype.Uint32},
		{&arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.PrimitiveTypes.Float64}, datatype.Float64},
	}
	for _, tt := range tests {
		got, err := TargetTypeOf(tt.dt)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := TargetTypeOf(arrow.FixedWidthTypes.Date32)
	assert.True(t, stderrors.Is(err, errors.ErrUnrepresentableType))
}
