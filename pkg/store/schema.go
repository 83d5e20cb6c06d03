package store

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/arraystore/pkg/datatype"
	"github.com/ajitpratap0/arraystore/pkg/errors"
	"github.com/ajitpratap0/arraystore/pkg/order"
)

// DefaultCapacity is the default number of cells per data tile.
const DefaultCapacity = 100_000

// Dim describes one dimension (index column).
type Dim struct {
	Name string              `json:"name"`
	Type datatype.TargetType `json:"type"`
	// Domain is the inclusive coordinate range of an integer dimension.
	// Other dimension types are unbounded and leave it zero.
	Domain [2]int64 `json:"domain"`
	Extent int64    `json:"extent,omitempty"`
}

// Bounded reports whether the dimension has an enforced integer domain.
func (d Dim) Bounded() bool {
	return d.Type.IsInteger()
}

// Contains reports whether v lies in the dimension's domain.
func (d Dim) Contains(v int64) bool {
	return v >= d.Domain[0] && v <= d.Domain[1]
}

// Attr describes one attribute (value column).
type Attr struct {
	Name     string              `json:"name"`
	Type     datatype.TargetType `json:"type"`
	Nullable bool                `json:"nullable"`
}

// Schema is the immutable layout of an array.
type Schema struct {
	Dims             []Dim        `json:"dims"`
	Attrs            []Attr       `json:"attrs"`
	Sparse           bool         `json:"sparse"`
	AllowsDuplicates bool         `json:"allows_duplicates"`
	CellOrder        order.Layout `json:"cell_order"`
	TileOrder        order.Layout `json:"tile_order"`
	Capacity         int64        `json:"capacity"`
}

// Validate checks names, types and domains.
func (s *Schema) Validate() error {
	if len(s.Dims) == 0 {
		return errors.New(errors.ErrorTypeValidation, "schema needs at least one dimension")
	}
	seen := make(map[string]bool, len(s.Dims)+len(s.Attrs))
	claim := func(name string) error {
		if name == "" {
			return errors.New(errors.ErrorTypeValidation, "empty column name")
		}
		if isReservedColumn(name) {
			return errors.Newf(errors.ErrorTypeValidation, "column name %q uses the reserved prefix %q", name, ReservedPrefix).
				WithDetail("column", name)
		}
		if seen[name] {
			return errors.Newf(errors.ErrorTypeValidation, "duplicate column name %q", name).WithDetail("column", name)
		}
		seen[name] = true
		return nil
	}

	for _, d := range s.Dims {
		if err := claim(d.Name); err != nil {
			return err
		}
		if !d.Type.Valid() || d.Type == datatype.Bool {
			return errors.Newf(errors.ErrorTypeValidation, "dimension %q has unsupported type %q", d.Name, d.Type).
				WithDetail("column", d.Name)
		}
		if d.Bounded() && d.Domain[0] > d.Domain[1] {
			return errors.Newf(errors.ErrorTypeValidation, "dimension %q has empty domain [%d, %d]",
				d.Name, d.Domain[0], d.Domain[1]).WithDetail("column", d.Name)
		}
		if !s.Sparse && !d.Bounded() {
			return errors.Newf(errors.ErrorTypeValidation, "dense array dimension %q must be an integer", d.Name).
				WithDetail("column", d.Name)
		}
	}
	for _, a := range s.Attrs {
		if err := claim(a.Name); err != nil {
			return err
		}
		if !a.Type.Valid() {
			return errors.Newf(errors.ErrorTypeValidation, "attribute %q has unsupported type %q", a.Name, a.Type).
				WithDetail("column", a.Name)
		}
	}
	if s.Capacity < 0 {
		return errors.Newf(errors.ErrorTypeValidation, "capacity must be positive, got %d", s.Capacity)
	}
	return nil
}

// withDefaults fills unset layout fields.
func (s Schema) withDefaults() Schema {
	if s.CellOrder == "" {
		s.CellOrder = order.LayoutRowMajor
	}
	if s.TileOrder == "" {
		s.TileOrder = order.LayoutRowMajor
	}
	if s.Capacity == 0 {
		s.Capacity = DefaultCapacity
	}
	return s
}

// ArrowSchema returns the Arrow schema of a full record: dimensions first,
// then attributes, in declaration order.
func (s *Schema) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, 0, len(s.Dims)+len(s.Attrs))
	for _, d := range s.Dims {
		fields = append(fields, arrow.Field{Name: d.Name, Type: d.Type.ArrowType()})
	}
	for _, a := range s.Attrs {
		fields = append(fields, arrow.Field{Name: a.Name, Type: a.Type.ArrowType(), Nullable: a.Nullable})
	}
	return arrow.NewSchema(fields, nil)
}

// DimNames returns the dimension names in order.
func (s *Schema) DimNames() []string {
	names := make([]string, len(s.Dims))
	for i, d := range s.Dims {
		names[i] = d.Name
	}
	return names
}

// AttrNames returns the attribute names in order.
func (s *Schema) AttrNames() []string {
	names := make([]string, len(s.Attrs))
	for i, a := range s.Attrs {
		names[i] = a.Name
	}
	return names
}

// Dim returns the dimension called name.
func (s *Schema) Dim(name string) (Dim, bool) {
	for _, d := range s.Dims {
		if d.Name == name {
			return d, true
		}
	}
	return Dim{}, false
}

// Attr returns the attribute called name.
func (s *Schema) Attr(name string) (Attr, bool) {
	for _, a := range s.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attr{}, false
}

// Shape returns the domain length of every dimension of a dense array.
func (s *Schema) Shape() []int64 {
	shape := make([]int64, len(s.Dims))
	for i, d := range s.Dims {
		shape[i] = d.Domain[1] - d.Domain[0] + 1
	}
	return shape
}

func (s *Schema) columnType(name string) (datatype.TargetType, bool) {
	if d, ok := s.Dim(name); ok {
		return d.Type, true
	}
	if a, ok := s.Attr(name); ok {
		return a.Type, true
	}
	return "", false
}

func (s *Schema) String() string {
	return fmt.Sprintf("Schema(dims=%v, attrs=%v, sparse=%t)", s.DimNames(), s.AttrNames(), s.Sparse)
}
