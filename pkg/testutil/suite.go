package testutil

import (
	"context"
	"os"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arraystore/pkg/store"
	"github.com/ajitpratap0/arraystore/pkg/store/backend"
)

// StoreSuite runs tests against a store on the local filesystem. Each test
// gets its own directory; Reopen checks what survives closing the store.
type StoreSuite struct {
	suite.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	tempDir string
	dir     string

	Store *store.Store
}

// SetupSuite runs before all tests in the suite
func (s *StoreSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	dir, err := os.MkdirTemp("", "arraystore-test-*")
	s.Require().NoError(err)
	s.tempDir = dir
}

// TearDownSuite runs after all tests in the suite
func (s *StoreSuite) TearDownSuite() {
	s.cancel()
	if s.tempDir != "" {
		_ = os.RemoveAll(s.tempDir)
	}
}

// SetupTest opens a store in a new directory.
func (s *StoreSuite) SetupTest() {
	dir, err := os.MkdirTemp(s.tempDir, "store-*")
	s.Require().NoError(err)
	s.dir = dir
	s.open()
}

// TearDownTest closes the store.
func (s *StoreSuite) TearDownTest() {
	if s.Store != nil {
		s.NoError(s.Store.Close())
		s.Store = nil
	}
}

// Context returns the suite context.
func (s *StoreSuite) Context() context.Context {
	return s.ctx
}

// Dir returns the root directory of the current test's store.
func (s *StoreSuite) Dir() string {
	return s.dir
}

// Reopen closes the store and opens a new one over the same directory.
func (s *StoreSuite) Reopen() *store.Store {
	s.Require().NoError(s.Store.Close())
	s.open()
	return s.Store
}

func (s *StoreSuite) open() {
	b, err := backend.NewFile(s.dir)
	s.Require().NoError(err)
	st, err := store.New(b, store.WithLogger(zap.NewNop()))
	s.Require().NoError(err)
	s.Store = st
}
