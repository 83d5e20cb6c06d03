package ingest

import (
	"context"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/arraystore/pkg/arrowutil"
	"github.com/ajitpratap0/arraystore/pkg/chunk"
	"github.com/ajitpratap0/arraystore/pkg/config"
	"github.com/ajitpratap0/arraystore/pkg/datatype"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/source"
	"github.com/ajitpratap0/arraystore/pkg/store"
)

// MaxJoinID is the upper bound of the default joinid domain.
const MaxJoinID = 1<<31 - 2

// Index describes the index columns of a dataframe.
type Index struct {
	// Columns are the index column names in dimension order. Nil means
	// joinid alone.
	Columns []string
	// Domains optionally sets the inclusive coordinate range of integer
	// index columns. Unset columns take the full range of their type.
	Domains map[string][2]int64
}

// CreateFromTable creates a DataFrame holding t, indexed by indexColumns.
func (in *Ingester) CreateFromTable(ctx context.Context, uri string, t *source.Table,
	indexColumns []string, opts config.CreateOptions) (Report, error) {
	return in.CreateDataFrame(ctx, uri, t, Index{Columns: indexColumns}, opts)
}

// CreateDataFrame creates a DataFrame holding t.
//
// A joinid column holding row positions 0..n-1 is appended when t has none;
// an existing one must normalize to int64. Column names may not start with
// the reserved prefix. Index columns must be integer, float, string or
// bytes columns of t.
func (in *Ingester) CreateDataFrame(ctx context.Context, uri string, t *source.Table, idx Index,
	opts config.CreateOptions) (rep Report, err error) {
	ctx, s := in.begin(ctx, "create_from_table", uri, store.DataFrame)
	defer func() { rep = s.end(err) }()

	if err := opts.Validate(); err != nil {
		return s.report, err
	}
	rec, err := in.prepareTable(t)
	if err != nil {
		return s.report, err
	}
	defer rec.Release()

	schema, err := dataFrameSchema(rec.Schema(), idx, opts)
	if err != nil {
		return s.report, err
	}

	err = in.create(ctx, s, uri, store.DataFrame, schema, opts, func(arr *store.Array) error {
		return in.writeRecord(ctx, s, arr, rec, opts)
	})
	return s.report, err
}

// WriteTable normalizes rec and commits it to arr in row chunks. Columns
// are matched to the array schema by name.
func (in *Ingester) WriteTable(ctx context.Context, arr *store.Array, rec arrow.Record,
	opts config.CreateOptions) (rep Report, err error) {
	ctx, s := in.begin(ctx, "write_table", arr.URI(), arr.ObjectType())
	defer func() { rep = s.end(err) }()

	if err := opts.Validate(); err != nil {
		return s.report, err
	}
	norm, err := in.normalizer.Record(rec)
	if err != nil {
		return s.report, err
	}
	defer norm.Release()
	return s.report, in.writeRecord(ctx, s, arr, norm, opts)
}

func (in *Ingester) writeRecord(ctx context.Context, s *session, arr *store.Array, rec arrow.Record,
	opts config.CreateOptions) error {
	src := chunk.Rows(int(rec.NumRows()), int(rec.NumCols()))
	return in.writeChunks(ctx, s, arr, src, opts, false, func(c chunk.Chunk) (arrow.Record, error) {
		return rec.NewSlice(int64(c.Lo), int64(c.Hi)), nil
	})
}

// prepareTable checks column names, adds joinid when missing and
// normalizes every column.
func (in *Ingester) prepareTable(t *source.Table) (arrow.Record, error) {
	cols := make([]source.Column, 0, len(t.Columns)+1)
	hasJoinID := false
	for _, c := range t.Columns {
		if strings.HasPrefix(c.Name, store.ReservedPrefix) {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column %q uses the reserved prefix %q",
				c.Name, store.ReservedPrefix).WithDetail("column", c.Name)
		}
		hasJoinID = hasJoinID || c.Name == store.JoinID
		cols = append(cols, c)
	}
	if !hasJoinID {
		ids := make([]int64, t.NumRows())
		for i := range ids {
			ids[i] = int64(i)
		}
		joinids := arrowutil.NewInt64(in.mem, ids)
		defer joinids.Release()
		cols = append(cols, source.Column{Name: store.JoinID, Value: source.NewPrimitive(joinids)})
	}

	tbl, err := source.NewTable(cols...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid table")
	}
	rec, err := in.normalizer.Table(tbl)
	if err != nil {
		return nil, err
	}
	if f, _ := rec.Schema().FieldsByName(store.JoinID); f[0].Type.ID() != arrow.INT64 {
		rec.Release()
		return nil, errors.Newf(errors.ErrorTypeValidation, "%s must be int64, got %s", store.JoinID, f[0].Type).
			WithDetail("column", store.JoinID)
	}
	return rec, nil
}

// dataFrameSchema builds the schema of a dataframe whose columns are
// described by as.
func dataFrameSchema(as *arrow.Schema, idx Index, opts config.CreateOptions) (*store.Schema, error) {
	names := idx.Columns
	if names == nil {
		names = []string{store.JoinID}
	}
	if len(names) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "a dataframe needs at least one index column")
	}

	cell, tile := opts.Layouts()
	schema := &store.Schema{
		Sparse:           true,
		AllowsDuplicates: opts.AllowsDuplicates,
		CellOrder:        cell,
		TileOrder:        tile,
		Capacity:         opts.Capacity,
	}

	isIndex := make(map[string]bool, len(names))
	for _, name := range names {
		if isIndex[name] {
			return nil, errors.Newf(errors.ErrorTypeValidation, "index column %q is listed twice", name).
				WithDetail("column", name)
		}
		isIndex[name] = true

		fields, ok := as.FieldsByName(name)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "index column %q is not in the table", name).
				WithDetail("column", name)
		}
		t, ok := datatype.FromArrow(fields[0].Type)
		if !ok || !(t.IsNumeric() || t.IsVarLength()) {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column %q of type %s cannot be an index column",
				name, fields[0].Type).WithDetail("column", name)
		}
		dim, err := indexDim(name, t, idx.Domains, opts.DataFrameDimTile)
		if err != nil {
			return nil, err
		}
		schema.Dims = append(schema.Dims, dim)
	}

	for _, f := range as.Fields() {
		if isIndex[f.Name] {
			continue
		}
		t, _ := datatype.FromArrow(f.Type)
		schema.Attrs = append(schema.Attrs, store.Attr{Name: f.Name, Type: t, Nullable: true})
	}
	return schema, nil
}

// indexDim fills out the domain and tile extent of one index column.
func indexDim(name string, t datatype.TargetType, domains map[string][2]int64, tile int64) (store.Dim, error) {
	dim := store.Dim{Name: name, Type: t, Extent: tile}
	if t.ByteWidth() == 1 {
		dim.Extent = 64
	}
	domain, user := domains[name]

	switch {
	case t.IsInteger():
		if user {
			if name == store.JoinID && (domain[0] < 0 || domain[1] < 0) {
				return dim, errors.Newf(errors.ErrorTypeValidation, "%s domain cannot be negative, got [%d, %d]",
					name, domain[0], domain[1]).WithDetail("column", name)
			}
			dim.Domain = domain
		} else if name == store.JoinID {
			dim.Domain = [2]int64{0, MaxJoinID}
		} else {
			lo, hi, _ := t.IntRange()
			dim.Domain = [2]int64{lo, hi - 1}
		}
		dim.Extent = tileExtent(dim.Domain[0], dim.Domain[1], dim.Extent)
	case user:
		return dim, errors.Newf(errors.ErrorTypeValidation, "%s index column %q does not take a domain", t, name).
			WithDetail("column", name)
	}
	return dim, nil
}
