// Package arrowutil holds small Arrow array helpers shared by the
// normalizer, the ingest materializer and the read path.
package arrowutil

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Fill selects what Gather produces for a negative index.
type Fill int

const (
	// FillNull produces a null slot. Floating point slots hold NaN and
	// string slots hold "".
	FillNull Fill = iota
	// FillZero produces a valid zero value.
	FillZero
)

// Gather returns a new array holding src[idx[i]] for each i. A negative
// index is filled according to fill. src must be one of the storage types
// of the store.
func Gather(mem memory.Allocator, src arrow.Array, idx []int, fill Fill) (arrow.Array, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	valid := validity(src, idx, fill)

	switch a := src.(type) {
	case *array.Int8:
		b := array.NewInt8Builder(mem)
		defer b.Release()
		b.AppendValues(gatherValues(a.Int8Values(), idx, 0), valid)
		return b.NewArray(), nil
	case *array.Int16:
		b := array.NewInt16Builder(mem)
		defer b.Release()
		b.AppendValues(gatherValues(a.Int16Values(), idx, 0), valid)
		return b.NewArray(), nil
	case *array.Int32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		b.AppendValues(gatherValues(a.Int32Values(), idx, 0), valid)
		return b.NewArray(), nil
	case *array.Int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(gatherValues(a.Int64Values(), idx, 0), valid)
		return b.NewArray(), nil
	case *array.Uint8:
		b := array.NewUint8Builder(mem)
		defer b.Release()
		b.AppendValues(gatherValues(a.Uint8Values(), idx, 0), valid)
		return b.NewArray(), nil
	case *array.Uint16:
		b := array.NewUint16Builder(mem)
		defer b.Release()
		b.AppendValues(gatherValues(a.Uint16Values(), idx, 0), valid)
		return b.NewArray(), nil
	case *array.Uint32:
		b := array.NewUint32Builder(mem)
		defer b.Release()
		b.AppendValues(gatherValues(a.Uint32Values(), idx, 0), valid)
		return b.NewArray(), nil
	case *array.Uint64:
		b := array.NewUint64Builder(mem)
		defer b.Release()
		b.AppendValues(gatherValues(a.Uint64Values(), idx, 0), valid)
		return b.NewArray(), nil
	case *array.Float32:
		missing := float32(0)
		if fill == FillNull {
			missing = float32(math.NaN())
		}
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		b.AppendValues(gatherValues(a.Float32Values(), idx, missing), valid)
		return b.NewArray(), nil
	case *array.Float64:
		missing := 0.0
		if fill == FillNull {
			missing = math.NaN()
		}
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(gatherValues(a.Float64Values(), idx, missing), valid)
		return b.NewArray(), nil
	case *array.Boolean:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.AppendValues(gatherFunc(a.Value, idx, false), valid)
		return b.NewArray(), nil
	case *array.LargeString:
		b := array.NewLargeStringBuilder(mem)
		defer b.Release()
		b.AppendValues(gatherFunc(a.Value, idx, ""), valid)
		return b.NewArray(), nil
	case *array.LargeBinary:
		b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.LargeBinary)
		defer b.Release()
		b.AppendValues(gatherFunc(a.Value, idx, []byte{}), valid)
		return b.NewArray(), nil
	}
	return nil, fmt.Errorf("gather: unsupported array type %s", src.DataType())
}

// Take is Gather with every index in range.
func Take(mem memory.Allocator, src arrow.Array, idx []int) (arrow.Array, error) {
	return Gather(mem, src, idx, FillNull)
}

// Sequence returns [lo, hi) as a slice of indices.
func Sequence(lo, hi int) []int {
	if hi < lo {
		hi = lo
	}
	idx := make([]int, hi-lo)
	for i := range idx {
		idx[i] = lo + i
	}
	return idx
}

func gatherValues[T any](vals []T, idx []int, missing T) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		if j < 0 {
			out[i] = missing
			continue
		}
		out[i] = vals[j]
	}
	return out
}

func gatherFunc[T any](value func(int) T, idx []int, missing T) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		if j < 0 {
			out[i] = missing
			continue
		}
		out[i] = value(j)
	}
	return out
}

// validity returns nil when every output slot is valid.
func validity(src arrow.Array, idx []int, fill Fill) []bool {
	need := src.NullN() > 0
	if !need && fill == FillNull {
		for _, j := range idx {
			if j < 0 {
				need = true
				break
			}
		}
	}
	if !need {
		return nil
	}
	valid := make([]bool, len(idx))
	for i, j := range idx {
		if j < 0 {
			valid[i] = fill == FillZero
			continue
		}
		valid[i] = src.IsValid(j)
	}
	return valid
}
