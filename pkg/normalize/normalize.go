// Package normalize maps source values onto the store's primitive element
// types.
//
// Rules are applied in this order:
//   - float16 widens to float32
//   - categorical values resolve through their category type; integer,
//     boolean and bytes categories cannot represent a missing code
//   - untyped categories are inferred as bool, string, bytes or numeric, and
//     anything else is stored as strings
//   - tables normalize column by column, keeping names and order
//
// Inputs are never modified. Results own their arrays and should be
// released by the caller.
package normalize

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arraystore/pkg/arrowutil"
	"github.com/ajitpratap0/arraystore/pkg/datatype"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/logger"
	"github.com/ajitpratap0/arraystore/pkg/source"
)

// Result is a normalized column.
type Result struct {
	Array arrow.Array
	Type  datatype.TargetType
}

// Release releases the result array.
func (r Result) Release() {
	if r.Array != nil {
		r.Array.Release()
	}
}

// Normalizer converts source values to storage arrays.
type Normalizer struct {
	mem    memory.Allocator
	logger *zap.Logger
}

// New creates a Normalizer. Nil arguments select the default allocator and
// the global logger.
func New(mem memory.Allocator, l *zap.Logger) *Normalizer {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Normalizer{
		mem:    mem,
		logger: logger.OrDefault(l).With(zap.String("component", "normalizer")),
	}
}

// Value normalizes a single column.
func (n *Normalizer) Value(v source.Value) (Result, error) {
	switch v.Kind {
	case source.Primitive:
		if v.Array == nil {
			return Result{}, errors.New(errors.ErrorTypeValidation, "primitive value has no array")
		}
		return n.primitive(v.Array)
	case source.Categorical:
		return n.categorical(v)
	case source.Opaque:
		return n.opaque(v.Values), nil
	}
	return Result{}, errors.Newf(errors.ErrorTypeValidation, "unknown value kind %s", v.Kind)
}

// Table normalizes every column of t into a record with the same column
// names and order.
func (n *Normalizer) Table(t *source.Table) (arrow.Record, error) {
	fields := make([]arrow.Field, len(t.Columns))
	cols := make([]arrow.Array, 0, len(t.Columns))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for i, c := range t.Columns {
		r, err := n.Value(c.Value)
		if err != nil {
			if e, ok := errors.As(err); ok {
				e.WithDetail("column", c.Name)
			}
			return nil, err
		}
		fields[i] = arrow.Field{Name: c.Name, Type: r.Array.DataType(), Nullable: true}
		cols = append(cols, r.Array)
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, cols, int64(t.NumRows())), nil
}

// Record normalizes an Arrow record, resolving dictionary columns as
// categorical values.
func (n *Normalizer) Record(rec arrow.Record) (arrow.Record, error) {
	return n.Table(source.TableFromRecord(rec))
}

// TargetTypeOf returns the element type an Arrow type normalizes to,
// without looking at values.
func TargetTypeOf(dt arrow.DataType) (datatype.TargetType, error) {
	if t, ok := datatype.FromArrow(dt); ok {
		return t, nil
	}
	switch dt.ID() {
	case arrow.FLOAT16:
		return datatype.Float32, nil
	case arrow.STRING:
		return datatype.String, nil
	case arrow.BINARY, arrow.FIXED_SIZE_BINARY:
		return datatype.Bytes, nil
	case arrow.DICTIONARY:
		return TargetTypeOf(dt.(*arrow.DictionaryType).ValueType)
	}
	return "", errors.Unrepresentable("%s values have no storage type", dt).WithDetail("arrow_type", dt.String())
}

func (n *Normalizer) primitive(arr arrow.Array) (Result, error) {
	if t, ok := datatype.FromArrow(arr.DataType()); ok {
		arr.Retain()
		return Result{Array: arr, Type: t}, nil
	}

	switch a := arr.(type) {
	case *array.Float16:
		vals := make([]float32, a.Len())
		for i := range vals {
			vals[i] = a.Value(i).Float32()
		}
		b := array.NewFloat32Builder(n.mem)
		defer b.Release()
		b.AppendValues(vals, validBits(a))
		n.logger.Debug("widened float16 values", zap.Int("len", a.Len()))
		return Result{Array: b.NewArray(), Type: datatype.Float32}, nil
	case *array.String:
		b := array.NewLargeStringBuilder(n.mem)
		defer b.Release()
		b.Reserve(a.Len())
		for i := 0; i < a.Len(); i++ {
			if a.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(a.Value(i))
		}
		return Result{Array: b.NewArray(), Type: datatype.String}, nil
	case *array.Binary:
		return n.toBytes(a.Len(), a.IsNull, a.Value), nil
	case *array.FixedSizeBinary:
		return n.toBytes(a.Len(), a.IsNull, a.Value), nil
	case *array.Dictionary:
		return n.categorical(source.FromArrow(a))
	}

	return Result{}, errors.Unrepresentable("%s values have no storage type", arr.DataType()).
		WithDetail("arrow_type", arr.DataType().String())
}

func (n *Normalizer) toBytes(length int, isNull func(int) bool, value func(int) []byte) Result {
	b := array.NewBinaryBuilder(n.mem, arrow.BinaryTypes.LargeBinary)
	defer b.Release()
	for i := 0; i < length; i++ {
		if isNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(value(i))
	}
	return Result{Array: b.NewArray(), Type: datatype.Bytes}
}

func (n *Normalizer) categorical(v source.Value) (Result, error) {
	ncat := v.NumCategories()
	for i, c := range v.Codes {
		if c < source.MissingCode || int(c) >= ncat {
			return Result{}, errors.Newf(errors.ErrorTypeData,
				"categorical code %d at position %d out of range for %d categories", c, i, ncat)
		}
	}

	var (
		cats Result
		err  error
	)
	switch {
	case v.Categories != nil:
		if v.Categories.DataType().ID() == arrow.DICTIONARY {
			return Result{}, errors.Unrepresentable("categories may not themselves be dictionary encoded")
		}
		if v.Categories.NullN() > 0 {
			return Result{}, errors.Unrepresentable(
				"category set holds %d missing values; category sets cannot hold missing values", v.Categories.NullN()).
				WithDetail("category_type", v.Categories.DataType().String())
		}
		cats, err = n.primitive(v.Categories)
	default:
		cats, err = n.inferCategories(v.CategoryValues)
	}
	if err != nil {
		return Result{}, err
	}
	defer cats.Release()

	if v.HasMissing() {
		switch {
		case cats.Type.IsInteger(), cats.Type == datatype.Bool, cats.Type == datatype.Bytes:
			return Result{}, errors.Unrepresentable(
				"categorical with %s categories has missing values, which %s storage cannot hold", cats.Type, cats.Type).
				WithDetail("category_type", cats.Type.String())
		}
	}

	idx := make([]int, len(v.Codes))
	for i, c := range v.Codes {
		idx[i] = int(c)
	}
	out, err := arrowutil.Gather(n.mem, cats.Array, idx, arrowutil.FillNull)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrorTypeInternal, "failed to resolve categorical codes")
	}
	n.logger.Debug("resolved categorical values",
		zap.String("category_type", cats.Type.String()),
		zap.Int("categories", ncat),
		zap.Int("len", len(v.Codes)))
	return Result{Array: out, Type: cats.Type}, nil
}

func validBits(arr arrow.Array) []bool {
	if arr.NullN() == 0 {
		return nil
	}
	valid := make([]bool, arr.Len())
	for i := range valid {
		valid[i] = arr.IsValid(i)
	}
	return valid
}
