// Package errors provides examples of structured error handling in arraystore.
package errors_test

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/arraystore/pkg/errors"
)

// Example demonstrates basic error creation and details.
func Example() {
	err := errors.New(errors.ErrorTypeConfig, "goal_chunk_nnz must be positive").
		WithDetail("key", "goal_chunk_nnz").
		WithDetail("value", 0)

	fmt.Println(err.Error())

	// Output:
	// config: goal_chunk_nnz must be positive
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeFile, "failed to read fragment").
		WithDetail("fragment", "00000001-2Cw3Cz0pSWOq3XsN2ahxdg5V3lP")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Cause is unexpected EOF")
	}

	// Output:
	// This is a file error
	// Cause is unexpected EOF
}

// ExampleCapacityExceeded shows matching a kind through a wrapped chain.
func ExampleCapacityExceeded() {
	err := errors.Wrap(errors.CapacityExceeded(7, 120, 100), errors.ErrorTypeData, "chunk 3 failed")

	fmt.Println(stderrors.Is(err, errors.ErrCapacityExceeded))
	fmt.Println(stderrors.Is(err, errors.ErrSchemaMismatch))
	fmt.Println(errors.IsRetryable(err))

	// Output:
	// true
	// false
	// false
}
