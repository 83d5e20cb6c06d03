package datatype

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrowRoundTrip(t *testing.T) {
	for _, tt := range All {
		t.Run(string(tt), func(t *testing.T) {
			dt := tt.ArrowType()
			require.NotNil(t, dt)
			back, ok := FromArrow(dt)
			require.True(t, ok)
			assert.Equal(t, tt, back)
		})
	}
}

func TestFromArrowRejectsNonStorageTypes(t *testing.T) {
	for _, dt := range []arrow.DataType{
		arrow.BinaryTypes.String,
		arrow.FixedWidthTypes.Float16,
		arrow.FixedWidthTypes.Date32,
	} {
		_, ok := FromArrow(dt)
		assert.False(t, ok, dt.String())
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("float32")
	require.NoError(t, err)
	assert.Equal(t, Float32, got)

	_, err = Parse("complex64")
	assert.Error(t, err)
}

func TestClassification(t *testing.T) {
	assert.True(t, Uint16.IsInteger())
	assert.False(t, Uint16.IsSignedInt())
	assert.True(t, Float64.IsNumeric())
	assert.False(t, Bool.IsNumeric())
	assert.True(t, Bytes.IsVarLength())
	assert.Equal(t, 8, Int64.ByteWidth())
	assert.Equal(t, 0, Bool.ByteWidth())

	lo, hi, ok := Int8.IntRange()
	assert.True(t, ok)
	assert.Equal(t, int64(-128), lo)
	assert.Equal(t, int64(127), hi)

	_, _, ok = String.IntRange()
	assert.False(t, ok)
}
