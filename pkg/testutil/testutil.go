// Package testutil provides test helpers shared by the arraystore packages.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/arraystore/pkg/store"
	"github.com/ajitpratap0/arraystore/pkg/store/backend"
)

// Logger creates a logger that writes to the test output.
func Logger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

// Context returns a context that is cancelled after 30 seconds or when the
// test ends.
func Context(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// MemStore returns a store over a fresh in-memory backend, closed when the
// test ends.
func MemStore(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()
	st, err := store.New(backend.NewMem(), append([]store.Option{store.WithLogger(Logger(t))}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}
