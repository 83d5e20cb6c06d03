// Package pool provides typed object pooling for the write path.
//
// Fragment encoding and payload compression draw their scratch buffers
// from Buffers.
//
// Example usage:
//
//	buf := pool.GetBuffer()
//	defer pool.PutBuffer(buf)
//	encode(buf)
//	out := bytes.Clone(buf.Bytes())
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// MaxPooledBuffer is the largest buffer capacity returned to the pool.
// Larger buffers are left to the garbage collector.
const MaxPooledBuffer = 64 << 20

// Pool is a type safe wrapper of sync.Pool that counts allocations and
// checkouts. It is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	keep  func(T) bool
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
		dropped   int64
	}
}

// New creates a pool. reset, if not nil, is called on every object put
// back.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// WithKeep sets a predicate deciding whether a returned object is pooled
// again.
func (p *Pool[T]) WithKeep(keep func(T) bool) *Pool[T] {
	p.keep = keep
	return p
}

// Get retrieves an object, creating one when the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put returns obj to the pool.
func (p *Pool[T]) Put(obj T) {
	atomic.AddInt64(&p.stats.inUse, -1)
	if p.keep != nil && !p.keep(obj) {
		atomic.AddInt64(&p.stats.dropped, 1)
		return
	}
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Allocated int64
	InUse     int64
	Gets      int64
	Dropped   int64
}

// Stats returns current counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Allocated: atomic.LoadInt64(&p.stats.allocated),
		InUse:     atomic.LoadInt64(&p.stats.inUse),
		Gets:      atomic.LoadInt64(&p.stats.gets),
		Dropped:   atomic.LoadInt64(&p.stats.dropped),
	}
}

// Buffers pools scratch buffers for encoding and compression.
var Buffers = New(
	func() *bytes.Buffer { return new(bytes.Buffer) },
	func(b *bytes.Buffer) { b.Reset() },
).WithKeep(func(b *bytes.Buffer) bool { return b.Cap() <= MaxPooledBuffer })

// GetBuffer returns an empty buffer from Buffers.
func GetBuffer() *bytes.Buffer {
	return Buffers.Get()
}

// PutBuffer returns b to Buffers. b must not be used afterwards, nor any
// slice obtained from b.Bytes().
func PutBuffer(b *bytes.Buffer) {
	Buffers.Put(b)
}
