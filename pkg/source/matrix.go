package source

import (
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
)

// Layout identifies a matrix representation.
type Layout string

const (
	LayoutDense Layout = "dense"
	LayoutCSR   Layout = "csr"
	LayoutCSC   Layout = "csc"
	LayoutCOO   Layout = "coo"
)

// Matrix is a two dimensional numeric input.
type Matrix interface {
	Layout() Layout
	Shape() (rows, cols int)
	// Values holds every cell for dense matrices and the stored entries
	// for sparse ones.
	Values() arrow.Array
}

// Dense is a row-major dense matrix.
type Dense struct {
	Rows, Cols int
	Data       arrow.Array
}

// NewDense checks the data length against the shape.
func NewDense(rows, cols int, data arrow.Array) (*Dense, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("negative shape (%d, %d)", rows, cols)
	}
	if data.Len() != rows*cols {
		return nil, fmt.Errorf("dense data has %d values, shape (%d, %d) needs %d", data.Len(), rows, cols, rows*cols)
	}
	return &Dense{Rows: rows, Cols: cols, Data: data}, nil
}

func (d *Dense) Layout() Layout { return LayoutDense }
func (d *Dense) Shape() (int, int) { return d.Rows, d.Cols }
func (d *Dense) Values() arrow.Array { return d.Data }

// Compressed is a CSR or CSC matrix. For CSR, Indptr is indexed by row and
// Indices hold column positions; for CSC the roles swap.
type Compressed struct {
	Format     Layout
	Rows, Cols int
	Indptr     []int64
	Indices    []int64
	Data       arrow.Array
}

// NewCSR builds a compressed sparse row matrix.
func NewCSR(rows, cols int, indptr, indices []int64, data arrow.Array) (*Compressed, error) {
	m := &Compressed{Format: LayoutCSR, Rows: rows, Cols: cols, Indptr: indptr, Indices: indices, Data: data}
	return m, m.validate()
}

// NewCSC builds a compressed sparse column matrix.
func NewCSC(rows, cols int, indptr, indices []int64, data arrow.Array) (*Compressed, error) {
	m := &Compressed{Format: LayoutCSC, Rows: rows, Cols: cols, Indptr: indptr, Indices: indices, Data: data}
	return m, m.validate()
}

func (m *Compressed) Layout() Layout { return m.Format }
func (m *Compressed) Shape() (int, int) { return m.Rows, m.Cols }
func (m *Compressed) Values() arrow.Array { return m.Data }

// Major returns the number of rows for CSR and columns for CSC.
func (m *Compressed) Major() int {
	if m.Format == LayoutCSC {
		return m.Cols
	}
	return m.Rows
}

// Minor returns the length of the non-compressed axis.
func (m *Compressed) Minor() int {
	if m.Format == LayoutCSC {
		return m.Rows
	}
	return m.Cols
}

// MajorNNZ returns the number of stored entries in major slot i.
func (m *Compressed) MajorNNZ(i int) int64 {
	return m.Indptr[i+1] - m.Indptr[i]
}

func (m *Compressed) validate() error {
	if m.Rows < 0 || m.Cols < 0 {
		return fmt.Errorf("negative shape (%d, %d)", m.Rows, m.Cols)
	}
	major, minor := m.Major(), m.Minor()
	if len(m.Indptr) != major+1 {
		return fmt.Errorf("%s indptr has %d entries, want %d", m.Format, len(m.Indptr), major+1)
	}
	if m.Indptr[0] != 0 {
		return fmt.Errorf("%s indptr must start at 0", m.Format)
	}
	for i := 0; i < major; i++ {
		if m.Indptr[i+1] < m.Indptr[i] {
			return fmt.Errorf("%s indptr decreases at %d", m.Format, i)
		}
	}
	nnz := m.Indptr[major]
	if int64(len(m.Indices)) != nnz || int64(m.Data.Len()) != nnz {
		return fmt.Errorf("%s has %d indices and %d values, indptr says %d", m.Format, len(m.Indices), m.Data.Len(), nnz)
	}
	for k, j := range m.Indices {
		if j < 0 || j >= int64(minor) {
			return fmt.Errorf("%s index %d at position %d out of range [0, %d)", m.Format, j, k, minor)
		}
	}
	return nil
}

// COO is a coordinate-format sparse matrix.
type COO struct {
	Rows, Cols int
	RowIdx     []int64
	ColIdx     []int64
	Data       arrow.Array
}

// NewCOO builds a coordinate matrix.
func NewCOO(rows, cols int, rowIdx, colIdx []int64, data arrow.Array) (*COO, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("negative shape (%d, %d)", rows, cols)
	}
	if len(rowIdx) != len(colIdx) || len(rowIdx) != data.Len() {
		return nil, fmt.Errorf("coo has %d rows, %d cols, %d values", len(rowIdx), len(colIdx), data.Len())
	}
	for k := range rowIdx {
		if rowIdx[k] < 0 || rowIdx[k] >= int64(rows) || colIdx[k] < 0 || colIdx[k] >= int64(cols) {
			return nil, fmt.Errorf("coo entry %d (%d, %d) outside shape (%d, %d)", k, rowIdx[k], colIdx[k], rows, cols)
		}
	}
	return &COO{Rows: rows, Cols: cols, RowIdx: rowIdx, ColIdx: colIdx, Data: data}, nil
}

func (m *COO) Layout() Layout { return LayoutCOO }
func (m *COO) Shape() (int, int) { return m.Rows, m.Cols }
func (m *COO) Values() arrow.Array { return m.Data }

// RowOrder returns entry positions stably sorted by row, and the matching
// CSR row pointer. Entries within a row keep their input order.
func (m *COO) RowOrder() (perm []int, indptr []int64) {
	perm = make([]int, len(m.RowIdx))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return m.RowIdx[perm[a]] < m.RowIdx[perm[b]]
	})
	indptr = make([]int64, m.Rows+1)
	for _, r := range m.RowIdx {
		indptr[r+1]++
	}
	for i := 0; i < m.Rows; i++ {
		indptr[i+1] += indptr[i]
	}
	return perm, indptr
}
