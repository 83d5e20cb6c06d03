// Package source describes in-memory inputs to ingestion: single columns of
// values, named tables of columns, and dense or compressed sparse matrices.
// Inputs are owned by the caller and never modified.
package source

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Kind tags the representation carried by a Value.
type Kind int

const (
	// Primitive values are a typed Arrow array.
	Primitive Kind = iota
	// Categorical values are integer codes into a category set.
	Categorical
	// Opaque values are untyped Go values stored as strings.
	Opaque
)

func (k Kind) String() string {
	switch k {
	case Primitive:
		return "primitive"
	case Categorical:
		return "categorical"
	case Opaque:
		return "opaque"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MissingCode marks a missing categorical value.
const MissingCode int32 = -1

// Value is one column of source data. Exactly the fields for Kind are set.
type Value struct {
	Kind Kind

	// Primitive
	Array arrow.Array

	// Categorical. Categories holds typed categories; CategoryValues holds
	// untyped ones when no Arrow type is known. One of the two is set.
	Codes          []int32
	Categories     arrow.Array
	CategoryValues []any

	// Opaque
	Values []any
}

// NewPrimitive wraps a typed array.
func NewPrimitive(arr arrow.Array) Value {
	return Value{Kind: Primitive, Array: arr}
}

// NewCategorical builds a categorical value over typed categories.
func NewCategorical(codes []int32, categories arrow.Array) Value {
	return Value{Kind: Categorical, Codes: codes, Categories: categories}
}

// NewCategoricalValues builds a categorical value over untyped categories.
func NewCategoricalValues(codes []int32, categories []any) Value {
	return Value{Kind: Categorical, Codes: codes, CategoryValues: categories}
}

// NewOpaque wraps untyped values.
func NewOpaque(values []any) Value {
	return Value{Kind: Opaque, Values: values}
}

// FromArrow converts an Arrow array into a Value. Dictionary-encoded arrays
// become categorical with null indices mapped to MissingCode.
func FromArrow(arr arrow.Array) Value {
	dict, ok := arr.(*array.Dictionary)
	if !ok {
		return NewPrimitive(arr)
	}
	codes := make([]int32, dict.Len())
	for i := range codes {
		if dict.IsNull(i) {
			codes[i] = MissingCode
			continue
		}
		codes[i] = int32(dict.GetValueIndex(i))
	}
	return NewCategorical(codes, dict.Dictionary())
}

// Len returns the number of values.
func (v Value) Len() int {
	switch v.Kind {
	case Primitive:
		if v.Array == nil {
			return 0
		}
		return v.Array.Len()
	case Categorical:
		return len(v.Codes)
	case Opaque:
		return len(v.Values)
	}
	return 0
}

// HasMissing reports whether a categorical value has any missing code.
func (v Value) HasMissing() bool {
	for _, c := range v.Codes {
		if c < 0 {
			return true
		}
	}
	return false
}

// NumCategories returns the size of the category set.
func (v Value) NumCategories() int {
	if v.Categories != nil {
		return v.Categories.Len()
	}
	return len(v.CategoryValues)
}
