// Package order translates user-facing result order tokens into the
// storage engine's native ordering.
package order

import (
	"fmt"

	"github.com/ajitpratap0/arraystore/pkg/errors"
)

// Native is the storage-native result ordering.
type Native int

const (
	// Default leaves ordering to the engine: row-major for dense reads,
	// commit order for sparse reads.
	Default Native = iota
	RowMajor
	ColMajor
	Unordered
)

func (n Native) String() string {
	switch n {
	case Default:
		return "default"
	case RowMajor:
		return "row-major"
	case ColMajor:
		return "col-major"
	case Unordered:
		return "unordered"
	}
	return fmt.Sprintf("order(%d)", int(n))
}

// Tokens accepted for non-indexed objects (row-id addressed dataframes).
const (
	RowIDOrdered = "rowid-ordered"
	TokUnordered = "unordered"
)

// Tokens accepted for indexed objects (ND arrays, indexed dataframes).
const (
	TokRowMajor = "row-major"
	TokColMajor = "col-major"
)

// NonIndexed translates an order token for a non-indexed object. The empty
// string means no order was requested.
func NonIndexed(token string) (Native, error) {
	switch token {
	case "":
		return Default, nil
	case RowIDOrdered:
		return RowMajor, nil
	case TokUnordered:
		return Unordered, nil
	}
	return Default, errors.UnrecognizedOrder(token).WithDetail("indexed", false)
}

// Indexed translates an order token for an indexed object. The empty string
// means no order was requested.
func Indexed(token string) (Native, error) {
	switch token {
	case "":
		return Default, nil
	case TokRowMajor:
		return RowMajor, nil
	case TokColMajor:
		return ColMajor, nil
	case TokUnordered:
		return Unordered, nil
	}
	return Default, errors.UnrecognizedOrder(token).WithDetail("indexed", true)
}

// Layout is a physical cell or tile layout chosen at array creation.
type Layout string

const (
	LayoutRowMajor Layout = TokRowMajor
	LayoutColMajor Layout = TokColMajor
)

// ParseLayout parses a cell or tile order create option. Empty means row-major.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", TokRowMajor:
		return LayoutRowMajor, nil
	case TokColMajor:
		return LayoutColMajor, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "invalid layout %q: want %q or %q", s, TokRowMajor, TokColMajor)
}

// Native returns the read ordering matching the layout.
func (l Layout) Native() Native {
	if l == LayoutColMajor {
		return ColMajor
	}
	return RowMajor
}
