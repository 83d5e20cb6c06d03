// Package store persists schema-constrained arrays as append-only sets of
// immutable fragments in an object backend.
//
// An array lives under its URI, a key prefix of the backend:
//
//	<uri>/__schema.json                      schema and fragment encoding
//	<uri>/__meta.json                        string metadata
//	<uri>/__fragments/<seq>-<ksuid><ext>     committed data
//
// Every commit adds one fragment. Fragments are never rewritten, so a
// reader listing fragments while a writer commits sees a prefix of the
// commits.
package store

import (
	"context"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/logger"
	"github.com/ajitpratap0/arraystore/pkg/store/backend"
)

const (
	defaultCacheSize       = 256
	defaultReadParallelism = 8
)

// Store opens and creates arrays in a backend.
type Store struct {
	backend         backend.Backend
	mem             memory.Allocator
	logger          *zap.Logger
	cacheSize       int
	cache           *lru.Cache[string, []byte]
	readParallelism int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithAllocator sets the allocator used for decoded records.
func WithAllocator(mem memory.Allocator) Option {
	return func(s *Store) { s.mem = mem }
}

// WithCacheSize sets how many fragment payloads are kept in
// memory. Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(s *Store) { s.cacheSize = n }
}

// WithReadParallelism bounds concurrent fragment decoding during reads.
func WithReadParallelism(n int) Option {
	return func(s *Store) { s.readParallelism = n }
}

// New creates a Store over b. The store owns b and closes it on Close.
func New(b backend.Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend:         b,
		mem:             memory.DefaultAllocator,
		cacheSize:       defaultCacheSize,
		readParallelism: defaultReadParallelism,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrDefault(s.logger).With(zap.String("component", "store"))
	if s.readParallelism < 1 {
		s.readParallelism = 1
	}
	if s.cacheSize > 0 {
		cache, err := lru.New[string, []byte](s.cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create fragment cache")
		}
		s.cache = cache
	}
	return s, nil
}

// Backend returns the underlying backend.
func (s *Store) Backend() backend.Backend {
	return s.backend
}

func cleanURI(uri string) (string, error) {
	uri = strings.Trim(uri, "/")
	if uri == "" {
		return "", errors.New(errors.ErrorTypeValidation, "array uri is empty")
	}
	for _, part := range strings.Split(uri, "/") {
		if strings.HasPrefix(part, ReservedPrefix) || part == "." || part == ".." {
			return "", errors.Newf(errors.ErrorTypeValidation, "invalid array uri %q", uri)
		}
	}
	return uri, nil
}

// Exists reports whether an array has been created at uri.
func (s *Store) Exists(ctx context.Context, uri string) (bool, error) {
	uri, err := cleanURI(uri)
	if err != nil {
		return false, err
	}
	return s.backend.Exists(ctx, backend.Join(uri, schemaKey))
}

// Create creates an array at uri and returns it open for writing. The
// object type and encoding version are recorded in its metadata.
func (s *Store) Create(ctx context.Context, uri string, objType ObjectType, schema *Schema, fo FragmentOptions) (*Array, error) {
	uri, err := cleanURI(uri)
	if err != nil {
		return nil, err
	}
	if _, err := ParseObjectType(string(objType)); err != nil {
		return nil, err
	}
	sc := schema.withDefaults()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	fo = fo.withDefaults()
	if err := fo.validate(); err != nil {
		return nil, err
	}

	exists, err := s.Exists(ctx, uri)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Newf(errors.ErrorTypeConflict, "array %q already exists", uri).WithDetail("uri", uri)
	}

	schemaData, err := encodeSchema(&sc, fo)
	if err != nil {
		return nil, err
	}
	meta := Metadata{
		MetaObjectType:      string(objType),
		MetaEncodingVersion: EncodingVersion,
	}
	metaData, err := encodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	// Metadata first: an array is visible once its schema exists.
	if err := s.backend.Put(ctx, backend.Join(uri, metaKey), metaData); err != nil {
		return nil, err
	}
	if err := s.backend.Put(ctx, backend.Join(uri, schemaKey), schemaData); err != nil {
		return nil, err
	}

	s.logger.Info("array created",
		zap.String("uri", uri),
		zap.String("object_type", string(objType)),
		zap.Bool("sparse", sc.Sparse),
		zap.Strings("dims", sc.DimNames()),
		zap.Strings("attrs", sc.AttrNames()))

	return newArray(s, uri, Write, &sc, fo, meta, 0), nil
}

// Open opens an existing array.
func (s *Store) Open(ctx context.Context, uri string, mode Mode) (*Array, error) {
	uri, err := cleanURI(uri)
	if err != nil {
		return nil, err
	}
	schemaData, err := s.backend.Get(ctx, backend.Join(uri, schemaKey))
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return nil, errors.Newf(errors.ErrorTypeNotFound, "no array at %q", uri).WithDetail("uri", uri)
		}
		return nil, err
	}
	schema, fo, err := decodeSchema(schemaData)
	if err != nil {
		return nil, err
	}
	metaData, err := s.backend.Get(ctx, backend.Join(uri, metaKey))
	if err != nil {
		return nil, err
	}
	meta, err := decodeMetadata(metaData)
	if err != nil {
		return nil, err
	}
	if v := meta[MetaEncodingVersion]; v != EncodingVersion {
		return nil, errors.Newf(errors.ErrorTypeData, "unsupported encoding version %q", v).WithDetail("uri", uri)
	}

	a := newArray(s, uri, mode, schema, fo, meta, 0)
	if mode == Write {
		frags, err := a.Fragments(ctx)
		if err != nil {
			return nil, err
		}
		if n := len(frags); n > 0 {
			a.nextSeq = frags[n-1].Seq + 1
		}
	}
	return a, nil
}

// Delete removes the array at uri and all of its fragments.
func (s *Store) Delete(ctx context.Context, uri string) error {
	uri, err := cleanURI(uri)
	if err != nil {
		return err
	}
	return s.backend.Delete(ctx, uri+"/")
}

// Close purges the fragment cache and closes the backend.
func (s *Store) Close() error {
	if s.cache != nil {
		s.cache.Purge()
	}
	return s.backend.Close()
}
