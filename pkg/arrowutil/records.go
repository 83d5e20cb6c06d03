package arrowutil

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// EmptyRecord returns a zero-row record of schema.
func EmptyRecord(mem memory.Allocator, schema *arrow.Schema) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	return b.NewRecord()
}

// ConcatRecords concatenates records sharing schema into one. The inputs
// are not released.
func ConcatRecords(mem memory.Allocator, schema *arrow.Schema, recs []arrow.Record) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	if len(recs) == 0 {
		return EmptyRecord(mem, schema), nil
	}
	if len(recs) == 1 {
		recs[0].Retain()
		return recs[0], nil
	}

	cols := make([]arrow.Array, schema.NumFields())
	var rows int64
	for _, r := range recs {
		if !r.Schema().Equal(schema) {
			return nil, fmt.Errorf("concat: schema %s does not match %s", r.Schema(), schema)
		}
		rows += r.NumRows()
	}
	for i := range cols {
		parts := make([]arrow.Array, len(recs))
		for j, r := range recs {
			parts[j] = r.Column(i)
		}
		col, err := array.Concatenate(parts, mem)
		if err != nil {
			releaseAll(cols[:i])
			return nil, fmt.Errorf("concat column %s: %w", schema.Field(i).Name, err)
		}
		cols[i] = col
	}
	defer releaseAll(cols)
	return array.NewRecord(schema, cols, rows), nil
}

// TableToRecord flattens the chunks of tbl into a single record.
func TableToRecord(mem memory.Allocator, tbl arrow.Table) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	schema := tbl.Schema()
	cols := make([]arrow.Array, 0, schema.NumFields())
	defer func() { releaseAll(cols) }()

	for i := 0; i < int(tbl.NumCols()); i++ {
		chunks := tbl.Column(i).Data().Chunks()
		var col arrow.Array
		switch len(chunks) {
		case 0:
			col = array.MakeArrayOfNull(mem, schema.Field(i).Type, 0)
		case 1:
			col = chunks[0]
			col.Retain()
		default:
			var err error
			col, err = array.Concatenate(chunks, mem)
			if err != nil {
				return nil, fmt.Errorf("flatten column %s: %w", schema.Field(i).Name, err)
			}
		}
		cols = append(cols, col)
	}
	return array.NewRecord(schema, cols, tbl.NumRows()), nil
}

// Project returns a record holding the named columns of rec in the given
// order.
func Project(rec arrow.Record, names []string) (arrow.Record, error) {
	fields := make([]arrow.Field, len(names))
	cols := make([]arrow.Array, len(names))
	for i, name := range names {
		idx := rec.Schema().FieldIndices(name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("project: no column %q", name)
		}
		fields[i] = rec.Schema().Field(idx[0])
		cols[i] = rec.Column(idx[0])
	}
	return array.NewRecord(arrow.NewSchema(fields, nil), cols, rec.NumRows()), nil
}

func releaseAll(arrs []arrow.Array) {
	for _, a := range arrs {
		if a != nil {
			a.Release()
		}
	}
}
