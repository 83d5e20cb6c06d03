package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arraystore/pkg/config"
	"github.com/ajitpratap0/arraystore/pkg/source"
	"github.com/ajitpratap0/arraystore/pkg/store"
	"github.com/ajitpratap0/arraystore/pkg/testutil"
)

// BenchmarkDenseIngest measures dense matrix ingestion into an in-memory
// store at several chunk goals.
func BenchmarkDenseIngest(b *testing.B) {
	const rows, cols = 1000, 100

	vb := array.NewFloat32Builder(memory.DefaultAllocator)
	for i := 0; i < rows*cols; i++ {
		if i%7 == 0 {
			vb.Append(float32(i))
		} else {
			vb.Append(0)
		}
	}
	data := vb.NewArray()
	vb.Release()
	defer data.Release()

	m, err := source.NewDense(rows, cols, data)
	require.NoError(b, err)

	for _, goal := range []int{1_000, 10_000, 100_000} {
		for _, kind := range []store.ObjectType{store.SparseNDArray, store.DenseNDArray} {
			b.Run(fmt.Sprintf("%s/goal=%d", kind, goal), func(b *testing.B) {
				opts, err := config.NewCreateOptions(map[string]any{"goal_chunk_nnz": goal})
				require.NoError(b, err)
				in := New(testutil.MemStore(b), WithLogger(zap.NewNop()))
				ctx := context.Background()

				b.ResetTimer()
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					_, err := in.CreateFromMatrix(ctx, fmt.Sprintf("X%d", i), kind, m, opts)
					require.NoError(b, err)
				}
				b.ReportMetric(float64(rows*cols*b.N)/b.Elapsed().Seconds(), "cells/s")
			})
		}
	}
}
