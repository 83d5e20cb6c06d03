// Package datatype defines the closed set of primitive element types an
// array can store and their mapping onto Arrow storage types.
package datatype

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
)

// TargetType is one of the store's primitive element types.
type TargetType string

const (
	Int8    TargetType = "int8"
	Int16   TargetType = "int16"
	Int32   TargetType = "int32"
	Int64   TargetType = "int64"
	Uint8   TargetType = "uint8"
	Uint16  TargetType = "uint16"
	Uint32  TargetType = "uint32"
	Uint64  TargetType = "uint64"
	Float32 TargetType = "float32"
	Float64 TargetType = "float64"
	Bool    TargetType = "bool"
	// String is variable-length UTF-8.
	String TargetType = "string"
	// Bytes is variable-length opaque bytes.
	Bytes TargetType = "bytes"
)

// All lists every target type in a stable order.
var All = []TargetType{
	Int8, Int16, Int32, Int64,
	Uint8, Uint16, Uint32, Uint64,
	Float32, Float64, Bool, String, Bytes,
}

// Parse returns the TargetType named s.
func Parse(s string) (TargetType, error) {
	t := TargetType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown element type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the known types.
func (t TargetType) Valid() bool {
	return t.ArrowType() != nil
}

func (t TargetType) String() string { return string(t) }

// ArrowType returns the single Arrow storage type used for t, or nil for an
// unknown type.
func (t TargetType) ArrowType() arrow.DataType {
	switch t {
	case Int8:
		return arrow.PrimitiveTypes.Int8
	case Int16:
		return arrow.PrimitiveTypes.Int16
	case Int32:
		return arrow.PrimitiveTypes.Int32
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Uint8:
		return arrow.PrimitiveTypes.Uint8
	case Uint16:
		return arrow.PrimitiveTypes.Uint16
	case Uint32:
		return arrow.PrimitiveTypes.Uint32
	case Uint64:
		return arrow.PrimitiveTypes.Uint64
	case Float32:
		return arrow.PrimitiveTypes.Float32
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Bool:
		return arrow.FixedWidthTypes.Boolean
	case String:
		return arrow.BinaryTypes.LargeString
	case Bytes:
		return arrow.BinaryTypes.LargeBinary
	}
	return nil
}

// FromArrow returns the TargetType stored as dt. Only the exact storage
// types produced by ArrowType are accepted.
func FromArrow(dt arrow.DataType) (TargetType, bool) {
	for _, t := range All {
		if arrow.TypeEqual(t.ArrowType(), dt) {
			return t, true
		}
	}
	return "", false
}

// IsSignedInt reports whether t is a signed integer type.
func (t TargetType) IsSignedInt() bool {
	switch t {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

// IsUnsignedInt reports whether t is an unsigned integer type.
func (t TargetType) IsUnsignedInt() bool {
	switch t {
	case Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// IsInteger reports whether t is any integer type.
func (t TargetType) IsInteger() bool {
	return t.IsSignedInt() || t.IsUnsignedInt()
}

// IsFloat reports whether t is a floating point type.
func (t TargetType) IsFloat() bool {
	return t == Float32 || t == Float64
}

// IsNumeric reports whether t is an integer or floating point type.
func (t TargetType) IsNumeric() bool {
	return t.IsInteger() || t.IsFloat()
}

// IsVarLength reports whether values of t have variable length.
func (t TargetType) IsVarLength() bool {
	return t == String || t == Bytes
}

// ByteWidth is the fixed width of one value in bytes, 0 for bool and
// variable-length types.
func (t TargetType) ByteWidth() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// IntRange returns the representable range of an integer type, clamped to
// int64. ok is false for non-integer types.
func (t TargetType) IntRange() (lo, hi int64, ok bool) {
	switch t {
	case Int8:
		return math.MinInt8, math.MaxInt8, true
	case Int16:
		return math.MinInt16, math.MaxInt16, true
	case Int32:
		return math.MinInt32, math.MaxInt32, true
	case Int64:
		return math.MinInt64, math.MaxInt64, true
	case Uint8:
		return 0, math.MaxUint8, true
	case Uint16:
		return 0, math.MaxUint16, true
	case Uint32:
		return 0, math.MaxUint32, true
	case Uint64:
		return 0, math.MaxInt64, true
	}
	return 0, 0, false
}
