package normalize

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/x448/float16"

	"github.com/ajitpratap0/arraystore/pkg/datatype"
	"github.com/ajitpratap0/arraystore/pkg/errors"
)

// inferredKind is the common kind of a set of untyped values.
type inferredKind int

const (
	kindUnknown inferredKind = iota
	kindBool
	kindString
	kindBytes
	kindSigned
	kindUnsigned
	kindFloat32
	kindFloat64
	kindOpaque
)

func kindOf(v any) inferredKind {
	switch v.(type) {
	case bool:
		return kindBool
	case string:
		return kindString
	case []byte:
		return kindBytes
	case int, int8, int16, int32, int64:
		return kindSigned
	case uint, uint8, uint16, uint32, uint64:
		return kindUnsigned
	case float32, float16.Float16:
		return kindFloat32
	case float64:
		return kindFloat64
	}
	return kindOpaque
}

// merge combines two kinds. Numeric kinds widen; everything else that
// disagrees becomes opaque.
func merge(a, b inferredKind) inferredKind {
	if a == kindUnknown || a == b {
		return b
	}
	numeric := func(k inferredKind) bool { return k >= kindSigned && k <= kindFloat64 }
	if !numeric(a) || !numeric(b) {
		return kindOpaque
	}
	if a == kindFloat64 || b == kindFloat64 {
		return kindFloat64
	}
	if a == kindFloat32 || b == kindFloat32 {
		// integers mixed with 32-bit floats need the wider mantissa
		return kindFloat64
	}
	// signed mixed with unsigned
	return kindSigned
}

// inferCategories builds a typed category array from untyped categories.
func (n *Normalizer) inferCategories(vals []any) (Result, error) {
	kind := kindUnknown
	for i, v := range vals {
		if v == nil {
			return Result{}, errors.Unrepresentable("category %d is missing; category sets cannot hold missing values", i)
		}
		kind = merge(kind, kindOf(v))
	}

	switch kind {
	case kindUnknown, kindString:
		b := array.NewLargeStringBuilder(n.mem)
		defer b.Release()
		for _, v := range vals {
			b.Append(v.(string))
		}
		return Result{Array: b.NewArray(), Type: datatype.String}, nil
	case kindBool:
		b := array.NewBooleanBuilder(n.mem)
		defer b.Release()
		for _, v := range vals {
			b.Append(v.(bool))
		}
		return Result{Array: b.NewArray(), Type: datatype.Bool}, nil
	case kindBytes:
		b := array.NewBinaryBuilder(n.mem, arrow.BinaryTypes.LargeBinary)
		defer b.Release()
		for _, v := range vals {
			b.Append(v.([]byte))
		}
		return Result{Array: b.NewArray(), Type: datatype.Bytes}, nil
	case kindSigned:
		b := array.NewInt64Builder(n.mem)
		defer b.Release()
		for _, v := range vals {
			i, err := asInt64(v)
			if err != nil {
				return Result{}, err
			}
			b.Append(i)
		}
		return Result{Array: b.NewArray(), Type: datatype.Int64}, nil
	case kindUnsigned:
		b := array.NewUint64Builder(n.mem)
		defer b.Release()
		for _, v := range vals {
			b.Append(asUint64(v))
		}
		return Result{Array: b.NewArray(), Type: datatype.Uint64}, nil
	case kindFloat32:
		b := array.NewFloat32Builder(n.mem)
		defer b.Release()
		for _, v := range vals {
			b.Append(float32(asFloat64(v)))
		}
		return Result{Array: b.NewArray(), Type: datatype.Float32}, nil
	case kindFloat64:
		b := array.NewFloat64Builder(n.mem)
		defer b.Release()
		for i, v := range vals {
			f, err := exactFloat64(v)
			if err != nil {
				return Result{}, err.WithDetail("category", i)
			}
			b.Append(f)
		}
		return Result{Array: b.NewArray(), Type: datatype.Float64}, nil
	}

	// mixed or unknown Go types are kept as their string form
	return n.opaque(vals), nil
}

// opaque stores untyped values as strings. Nil becomes a null "".
func (n *Normalizer) opaque(vals []any) Result {
	b := array.NewLargeStringBuilder(n.mem)
	defer b.Release()
	for _, v := range vals {
		switch x := v.(type) {
		case nil:
			b.AppendNull()
		case string:
			b.Append(x)
		case []byte:
			b.Append(string(x))
		case fmt.Stringer:
			b.Append(x.String())
		default:
			b.Append(fmt.Sprint(x))
		}
	}
	return Result{Array: b.NewArray(), Type: datatype.String}
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return checkedInt64(uint64(x))
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return checkedInt64(x)
	}
	return 0, errors.Unrepresentable("%T is not an integer", v)
}

func checkedInt64(u uint64) (int64, error) {
	if u > 1<<63-1 {
		return 0, errors.Unrepresentable("unsigned category %d overflows int64 alongside signed categories", u)
	}
	return int64(u), nil
}

func asUint64(v any) uint64 {
	switch x := v.(type) {
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	}
	return 0
}

// exactFloat64 widens v to float64, failing for integers that float64
// cannot hold exactly.
func exactFloat64(v any) (float64, *errors.Error) {
	switch kindOf(v) {
	case kindSigned:
		i, err := asInt64(v)
		if err != nil {
			return 0, errors.Unrepresentable("%v is not an integer", v)
		}
		f := float64(i)
		if f >= math.MaxInt64 || int64(f) != i {
			return 0, errors.Unrepresentable("integer category %d has no exact float64 value", i)
		}
		return f, nil
	case kindUnsigned:
		u := asUint64(v)
		f := float64(u)
		if f >= math.MaxUint64 || uint64(f) != u {
			return 0, errors.Unrepresentable("integer category %d has no exact float64 value", u)
		}
		return f, nil
	}
	return asFloat64(v), nil
}

func asFloat64(v any) float64 {
	switch x := v.(type) {
	case float16.Float16:
		return float64(x.Float32())
	case float32:
		return float64(x)
	case float64:
		return x
	}
	if i, err := asInt64(v); err == nil {
		return float64(i)
	}
	return float64(asUint64(v))
}
