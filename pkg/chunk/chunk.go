// Package chunk plans how a source is split into write units.
//
// A plan is a lazy, restartable sequence of contiguous ranges along the
// source's major axis (rows of a dense matrix, CSR or table; columns of a
// CSC matrix). Planning never reads element values.
package chunk

import (
	"fmt"
	"iter"

	"github.com/ajitpratap0/arraystore/pkg/source"
)

// DefaultGoalNNZ is the default element budget per chunk.
const DefaultGoalNNZ int64 = 100_000_000

// Options controls planning.
type Options struct {
	// Chunked false produces a single chunk covering the whole source.
	Chunked bool
	// GoalNNZ is the target number of elements per chunk. Must be positive.
	GoalNNZ int64
}

// Chunk is a half-open range [Lo, Hi) of the major axis.
type Chunk struct {
	Index int
	Lo    int
	Hi    int
	NNZ   int64
}

// Len returns the number of major slots covered.
func (c Chunk) Len() int { return c.Hi - c.Lo }

func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d [%d, %d) nnz=%d", c.Index, c.Lo, c.Hi, c.NNZ)
}

// Source describes the major axis of an input.
type Source interface {
	// Majors is the length of the major axis.
	Majors() int
	// MajorNNZ is the number of elements in major slot i.
	MajorNNZ(i int) int64
	// Uniform reports whether every slot holds the same count, which allows
	// fixed-size ranges.
	Uniform() bool
}

// Plan returns the chunk sequence for src.
//
// An empty source still yields exactly one empty chunk. For non-uniform
// sources, rows accumulate while the running count stays within the goal;
// a chunk is closed before a row that would overflow it, and a single row
// larger than the goal forms its own chunk.
func Plan(src Source, opts Options) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		n := src.Majors()
		goal := opts.GoalNNZ
		if goal <= 0 {
			goal = DefaultGoalNNZ
		}

		if !opts.Chunked || n == 0 {
			yield(Chunk{Index: 0, Lo: 0, Hi: n, NNZ: total(src, 0, n)})
			return
		}

		if src.Uniform() {
			per := src.MajorNNZ(0)
			step := 1
			if per > 0 && goal/per > 1 {
				step = int(goal / per)
			}
			if per == 0 {
				step = n
			}
			idx := 0
			for lo := 0; lo < n; lo += step {
				hi := min(lo+step, n)
				if !yield(Chunk{Index: idx, Lo: lo, Hi: hi, NNZ: per * int64(hi-lo)}) {
					return
				}
				idx++
			}
			return
		}

		idx, lo := 0, 0
		var run int64
		for i := 0; i < n; i++ {
			c := src.MajorNNZ(i)
			if i > lo && run+c > goal {
				if !yield(Chunk{Index: idx, Lo: lo, Hi: i, NNZ: run}) {
					return
				}
				idx++
				lo, run = i, 0
			}
			run += c
		}
		yield(Chunk{Index: idx, Lo: lo, Hi: n, NNZ: run})
	}
}

// Collect materializes a plan.
func Collect(seq iter.Seq[Chunk]) []Chunk {
	var out []Chunk
	for c := range seq {
		out = append(out, c)
	}
	return out
}

func total(src Source, lo, hi int) int64 {
	if src.Uniform() && hi > lo {
		return src.MajorNNZ(0) * int64(hi-lo)
	}
	var t int64
	for i := lo; i < hi; i++ {
		t += src.MajorNNZ(i)
	}
	return t
}

// uniform is a major axis where every slot holds width elements.
type uniform struct {
	majors int
	width  int64
}

func (u uniform) Majors() int { return u.majors }
func (u uniform) MajorNNZ(int) int64 { return u.width }
func (u uniform) Uniform() bool { return true }

// Rows returns a Source of n rows each holding width elements, used for
// dense matrices and tables.
func Rows(n, width int) Source {
	return uniform{majors: n, width: int64(width)}
}

// compressed adapts a CSR or CSC matrix.
type compressed struct {
	m *source.Compressed
}

func (c compressed) Majors() int { return c.m.Major() }
func (c compressed) MajorNNZ(i int) int64 { return c.m.MajorNNZ(i) }
func (c compressed) Uniform() bool { return false }

// counts adapts a precomputed row pointer.
type counts []int64

func (p counts) Majors() int { return len(p) - 1 }
func (p counts) MajorNNZ(i int) int64 { return p[i+1] - p[i] }
func (p counts) Uniform() bool { return false }

// FromIndptr returns a Source over a compressed row or column pointer.
func FromIndptr(indptr []int64) Source {
	if len(indptr) == 0 {
		return counts([]int64{0})
	}
	return counts(indptr)
}

// ForMatrix returns the Source describing m's major axis. COO matrices are
// planned by row.
func ForMatrix(m source.Matrix) Source {
	switch mm := m.(type) {
	case *source.Dense:
		return Rows(mm.Rows, mm.Cols)
	case *source.Compressed:
		return compressed{m: mm}
	case *source.COO:
		_, indptr := mm.RowOrder()
		return FromIndptr(indptr)
	}
	rows, cols := m.Shape()
	return Rows(rows, cols)
}

// ForTable returns the Source for a table: one row per major slot, each
// holding one element per column.
func ForTable(t *source.Table) Source {
	return Rows(t.NumRows(), len(t.Columns))
}
