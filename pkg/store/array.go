package store

import (
	"context"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arraystore/pkg/arrowutil"
	"github.com/ajitpratap0/arraystore/pkg/datatype"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/metrics"
	"github.com/ajitpratap0/arraystore/pkg/store/backend"
)

// Mode is the access mode of an open array.
type Mode int

const (
	Read Mode = iota
	Write
)

func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

// Array is an open handle to one array. A handle opened for writing owns
// the array: commits through it are serialized and no other writer is
// coordinated with.
type Array struct {
	store       *Store
	uri         string
	mode        Mode
	schema      *Schema
	arrowSchema *arrow.Schema
	fragOpts    FragmentOptions
	logger      *zap.Logger

	mu      sync.Mutex
	meta    Metadata
	nextSeq int
	closed  bool
}

func newArray(s *Store, uri string, mode Mode, schema *Schema, fo FragmentOptions, meta Metadata, nextSeq int) *Array {
	return &Array{
		store:       s,
		uri:         uri,
		mode:        mode,
		schema:      schema,
		arrowSchema: schema.ArrowSchema(),
		fragOpts:    fo,
		meta:        meta,
		nextSeq:     nextSeq,
		logger: s.logger.With(
			zap.String("array_uri", uri),
			zap.String("object_type", meta[MetaObjectType])),
	}
}

// URI returns the array location within the store.
func (a *Array) URI() string { return a.uri }

// Mode returns the access mode.
func (a *Array) Mode() Mode { return a.mode }

// Schema returns the array schema. It must not be modified.
func (a *Array) Schema() *Schema { return a.schema }

// ArrowSchema returns the Arrow schema of a full record.
func (a *Array) ArrowSchema() *arrow.Schema { return a.arrowSchema }

// FragmentOptions returns how this array encodes fragments.
func (a *Array) FragmentOptions() FragmentOptions { return a.fragOpts }

// ObjectType returns the object type recorded at creation.
func (a *Array) ObjectType() ObjectType {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.meta.ObjectType()
}

// Metadata returns a copy of the array metadata.
func (a *Array) Metadata() Metadata {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.meta.clone()
}

// SetMetadata stores a caller metadata entry. The object type, the
// encoding version and keys with the reserved prefix cannot be set.
func (a *Array) SetMetadata(ctx context.Context, key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.writable(); err != nil {
		return err
	}
	if key == "" || IsReservedMetadataKey(key) {
		return errors.Newf(errors.ErrorTypeValidation, "metadata key %q is reserved", key).WithDetail("key", key)
	}

	next := a.meta.clone()
	next[key] = value
	data, err := encodeMetadata(next)
	if err != nil {
		return err
	}
	if err := a.store.backend.Put(ctx, backend.Join(a.uri, metaKey), data); err != nil {
		return err
	}
	a.meta = next
	return nil
}

// Fragments lists committed fragments in commit order.
func (a *Array) Fragments(ctx context.Context) ([]Fragment, error) {
	keys, err := a.store.backend.List(ctx, backend.Join(a.uri, fragmentsDir)+"/")
	if err != nil {
		return nil, err
	}
	frags := make([]Fragment, 0, len(keys))
	for _, key := range keys {
		f, err := parseFragment(key)
		if err != nil {
			return nil, err
		}
		frags = append(frags, f)
	}
	return frags, nil
}

// CommitResult describes one committed fragment.
type CommitResult struct {
	Fragment Fragment
	Rows     int64
	Bytes    int64
}

// Commit validates rec against the schema and stores it as one new
// fragment. Columns may come in any order; missing nullable attributes are
// written as nulls. Every record, including an empty one, produces a
// fragment.
func (a *Array) Commit(ctx context.Context, rec arrow.Record) (CommitResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.writable(); err != nil {
		return CommitResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return CommitResult{}, err
	}

	timer := metrics.NewTimer("commit")
	full, err := a.prepare(rec)
	if err != nil {
		return CommitResult{}, err
	}
	defer full.Release()

	data, err := encodeFragment(a.store.mem, full, a.fragOpts, a.schema.Capacity)
	if err != nil {
		return CommitResult{}, err
	}
	key := backend.Join(a.uri, fragmentsDir, fragmentName(a.nextSeq, a.fragOpts))
	if err := a.store.backend.Put(ctx, key, data); err != nil {
		return CommitResult{}, err
	}
	frag, err := parseFragment(key)
	if err != nil {
		return CommitResult{}, err
	}
	a.nextSeq++

	objType := a.meta[MetaObjectType]
	metrics.FragmentsCommitted.WithLabelValues(objType).Inc()
	metrics.FragmentBytes.WithLabelValues(objType).Add(float64(len(data)))
	metrics.CellsWritten.WithLabelValues(objType).Add(float64(full.NumRows()))
	metrics.CommitLatency.WithLabelValues(string(a.fragOpts.Format)).Observe(timer.Stop().Seconds())

	a.logger.Debug("fragment committed",
		zap.String("key", key),
		zap.Int("seq", frag.Seq),
		zap.Int64("rows", full.NumRows()),
		zap.Int("bytes", len(data)))

	return CommitResult{Fragment: frag, Rows: full.NumRows(), Bytes: int64(len(data))}, nil
}

// prepare returns rec with columns in schema order, after checking names,
// types, nulls and coordinate domains.
func (a *Array) prepare(rec arrow.Record) (arrow.Record, error) {
	n := rec.NumRows()
	byName := make(map[string]arrow.Array, rec.NumCols())
	for i, field := range rec.Schema().Fields() {
		want, ok := a.schema.columnType(field.Name)
		if !ok {
			return nil, errors.SchemaMismatch("column %q is not in the array schema", field.Name).
				WithDetail("column", field.Name)
		}
		if _, dup := byName[field.Name]; dup {
			return nil, errors.SchemaMismatch("column %q appears twice", field.Name).WithDetail("column", field.Name)
		}
		got, ok := datatype.FromArrow(field.Type)
		if !ok || got != want {
			return nil, errors.SchemaMismatch("column %q is %s, array stores %s", field.Name, field.Type, want).
				WithDetail("column", field.Name).WithDetail("want", string(want))
		}
		byName[field.Name] = rec.Column(i)
	}

	cols := make([]arrow.Array, 0, a.arrowSchema.NumFields())
	var owned []arrow.Array
	defer func() {
		for _, c := range owned {
			c.Release()
		}
	}()

	for _, d := range a.schema.Dims {
		col, ok := byName[d.Name]
		if !ok {
			return nil, errors.SchemaMismatch("dimension %q is missing", d.Name).WithDetail("column", d.Name)
		}
		if col.NullN() > 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation, "dimension %q contains nulls", d.Name).
				WithDetail("column", d.Name)
		}
		if d.Bounded() {
			if err := checkDomain(d, col); err != nil {
				return nil, err
			}
		}
		cols = append(cols, col)
	}
	for _, at := range a.schema.Attrs {
		col, ok := byName[at.Name]
		switch {
		case !ok && at.Nullable:
			col = array.MakeArrayOfNull(a.store.mem, at.Type.ArrowType(), int(n))
			owned = append(owned, col)
		case !ok:
			return nil, errors.SchemaMismatch("attribute %q is missing", at.Name).WithDetail("column", at.Name)
		case !at.Nullable && col.NullN() > 0:
			return nil, errors.Newf(errors.ErrorTypeValidation, "attribute %q is not nullable", at.Name).
				WithDetail("column", at.Name)
		}
		cols = append(cols, col)
	}
	return array.NewRecord(a.arrowSchema, cols, n), nil
}

func checkDomain(d Dim, col arrow.Array) error {
	for i := 0; i < col.Len(); i++ {
		v, _ := arrowutil.Int64At(col, i)
		if !d.Contains(v) {
			return errors.Newf(errors.ErrorTypeValidation, "coordinate %d of dimension %q is outside [%d, %d]",
				v, d.Name, d.Domain[0], d.Domain[1]).
				WithDetail("column", d.Name).WithDetail("row", i)
		}
	}
	return nil
}

func (a *Array) writable() error {
	if a.closed {
		return errors.Newf(errors.ErrorTypeValidation, "array %q is closed", a.uri)
	}
	if a.mode != Write {
		return errors.Newf(errors.ErrorTypeValidation, "array %q is not open for writing", a.uri)
	}
	return nil
}

// Close closes the handle. Closing twice is a no-op.
func (a *Array) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.logger.Debug("array closed",
		zap.String("mode", a.mode.String()),
		zap.Int("next_seq", a.nextSeq))
	return nil
}

func isReservedColumn(name string) bool {
	return strings.HasPrefix(name, ReservedPrefix)
}
