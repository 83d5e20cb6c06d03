package arrowutil

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// NewInt64 builds an int64 array from vals.
func NewInt64(mem memory.Allocator, vals []int64) arrow.Array {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewArray()
}

// Int64At returns element i of an integer array widened to int64.
func Int64At(arr arrow.Array, i int) (int64, bool) {
	switch a := arr.(type) {
	case *array.Int8:
		return int64(a.Value(i)), true
	case *array.Int16:
		return int64(a.Value(i)), true
	case *array.Int32:
		return int64(a.Value(i)), true
	case *array.Int64:
		return a.Value(i), true
	case *array.Uint8:
		return int64(a.Value(i)), true
	case *array.Uint16:
		return int64(a.Value(i)), true
	case *array.Uint32:
		return int64(a.Value(i)), true
	case *array.Uint64:
		v := a.Value(i)
		if v > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(v), true
	}
	return 0, false
}

// IsZero reports whether element i is the zero value of its type. Null
// slots and NaN are not zero.
func IsZero(arr arrow.Array, i int) bool {
	if arr.IsNull(i) {
		return false
	}
	switch a := arr.(type) {
	case *array.Float32:
		return a.Value(i) == 0
	case *array.Float64:
		return a.Value(i) == 0
	case *array.Boolean:
		return !a.Value(i)
	case *array.LargeString:
		return a.Value(i) == ""
	case *array.LargeBinary:
		return len(a.Value(i)) == 0
	}
	v, ok := Int64At(arr, i)
	return ok && v == 0
}

// Compare orders element i against element j of the same array. Nulls sort
// first.
func Compare(arr arrow.Array, i, j int) int {
	ni, nj := arr.IsNull(i), arr.IsNull(j)
	switch {
	case ni && nj:
		return 0
	case ni:
		return -1
	case nj:
		return 1
	}
	switch a := arr.(type) {
	case *array.Uint64:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Float32:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Float64:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Boolean:
		return cmp.Compare(b2i(a.Value(i)), b2i(a.Value(j)))
	case *array.LargeString:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.LargeBinary:
		return bytes.Compare(a.Value(i), a.Value(j))
	}
	vi, _ := Int64At(arr, i)
	vj, _ := Int64At(arr, j)
	return cmp.Compare(vi, vj)
}

// AppendKey appends a byte encoding of element i to key. Equal elements of
// the same array type produce equal encodings.
func AppendKey(key []byte, arr arrow.Array, i int) []byte {
	switch a := arr.(type) {
	case *array.LargeString:
		key = binary.AppendUvarint(key, uint64(len(a.Value(i))))
		return append(key, a.Value(i)...)
	case *array.LargeBinary:
		key = binary.AppendUvarint(key, uint64(len(a.Value(i))))
		return append(key, a.Value(i)...)
	case *array.Uint64:
		return binary.BigEndian.AppendUint64(key, a.Value(i))
	}
	v, _ := Int64At(arr, i)
	return binary.BigEndian.AppendUint64(key, uint64(v))
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NewInts builds an integer array of type dt from vals. Values are
// truncated to the width of dt.
func NewInts(mem memory.Allocator, dt arrow.DataType, vals []int64) (arrow.Array, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	b.Reserve(len(vals))

	switch bb := b.(type) {
	case *array.Int8Builder:
		for _, v := range vals {
			bb.UnsafeAppend(int8(v))
		}
	case *array.Int16Builder:
		for _, v := range vals {
			bb.UnsafeAppend(int16(v))
		}
	case *array.Int32Builder:
		for _, v := range vals {
			bb.UnsafeAppend(int32(v))
		}
	case *array.Int64Builder:
		bb.AppendValues(vals, nil)
	case *array.Uint8Builder:
		for _, v := range vals {
			bb.UnsafeAppend(uint8(v))
		}
	case *array.Uint16Builder:
		for _, v := range vals {
			bb.UnsafeAppend(uint16(v))
		}
	case *array.Uint32Builder:
		for _, v := range vals {
			bb.UnsafeAppend(uint32(v))
		}
	case *array.Uint64Builder:
		for _, v := range vals {
			bb.UnsafeAppend(uint64(v))
		}
	default:
		return nil, fmt.Errorf("%s is not an integer type", dt)
	}
	return b.NewArray(), nil
}
