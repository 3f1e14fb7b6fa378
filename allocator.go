// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package segheap implements a segregated-list, boundary-tag heap allocator
// over a contiguous, monotonically growable byte region: best-fit
// placement, immediate coalescing, in-place shrink/grow resize, and
// constant-factor header overhead via pointer compression and footer
// elision on allocated blocks.
//
// segheap is single-threaded and synchronous: an *Allocator's zero value is
// not ready for use (construct with New) and every exported method must run
// to completion before another begins on the same Allocator, exactly as
// spec.md §5 requires. A caller needing concurrent access wraps an
// *Allocator in its own sync.Mutex; segheap does not do that for you.
package segheap

import "unsafe"

// Allocator owns one growable region and all of its allocator state: the
// seglist arrays, free lists, and block headers all live inside the region
// itself rather than in separate Go-side data structures, the same "package
// the module-level state into one owning value" move spec.md §9 calls for.
type Allocator struct {
	region RegionProvider
	opts   Options

	// anchor is the address pointer-compressed free-list offsets are
	// relative to. It is the prologue header's address, not the first
	// real block's address: anchoring there guarantees offset 0 can
	// never collide with a legitimate free block, even when the very
	// first real block in the heap happens to be free (see DESIGN.md
	// open question 4).
	anchor uintptr

	// heapBase is the first real block's address (blk convention: header
	// address + wordSize), the starting point of every heap walk.
	heapBase uintptr

	// epilogueAddr is the current epilogue sentinel's address (blk
	// convention), updated on every heap extension.
	epilogueAddr uintptr

	allocs        int
	totalExtended int
	liveBytes     int

	// LastDiagnostics holds the result of the most recent automatic
	// invariant audit when Options.DebugChecks is set; nil otherwise.
	LastDiagnostics []Diagnostic

	closed bool
}

// New constructs an Allocator: installs a RegionProvider (platform mmap by
// default) and the heap skeleton, then seeds the first free block via an
// initial chunk. Mirrors dbm.Create's "validate options, then build"
// constructor shape (_examples/cznic-exp/dbm/dbm.go).
func New(opts ...Option) (*Allocator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	region := o.region
	if region == nil {
		r, err := newRegion(o.MaxRegion)
		if err != nil {
			return nil, err
		}
		region = r
	}

	a := &Allocator{region: region, opts: o}
	if err := a.initSkeleton(); err != nil {
		region.Close()
		return nil, err
	}

	return a, nil
}

// Close releases the underlying region's OS resources. Using the Allocator
// afterward is undefined behavior, matching memory.Allocator.Close's own
// contract (memory.go:162-173): "It's not necessary to Close ... when
// exiting a process."
func (a *Allocator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.region.Close()
}

// Stats reports point-in-time allocator bookkeeping, the accessor
// equivalent of memory.Allocator's unexported allocs/bytes/mmaps fields
// (memory.go:82-89), surfaced as a method since segheap tracks more state
// (seglist + prologue/epilogue offsets) than is sensible to expose raw.
type Stats struct {
	// Allocs is the number of currently live allocations.
	Allocs int
	// RegionBytes is the total bytes committed from the region provider.
	RegionBytes int
	// LiveBytes is the sum of usable block size (header excluded, but
	// including whatever alignment/size-class rounding a request grew
	// into) across currently live allocations, the same quantity
	// UnsafeUsableSize reports for any one block.
	LiveBytes int
}

func (a *Allocator) Stats() Stats {
	return Stats{
		Allocs:      a.allocs,
		RegionBytes: int(a.region.High() - a.region.Low()),
		LiveBytes:   a.liveBytes,
	}
}

// ---- byte-slice API, named and shaped after memory.go's Malloc/Free/Calloc/Realloc ----

// Malloc allocates n bytes and returns a []byte view over them. The memory
// is not initialized. Malloc returns an error for n < 0 and (nil, nil) for
// n == 0, matching spec.md §7 (n==0 is success, not InvalidArgument).
func (a *Allocator) Malloc(n int) ([]byte, error) {
	b, err := a.allocate(n)
	if err != nil || !b.valid() {
		return nil, err
	}
	a.liveBytes += b.size() - wordSize
	return bytesAt(b.addr, n), nil
}

// Calloc is like Malloc except the allocated memory is zeroed, spec.md's
// zeroed(k,n) operation. Unlike the source this spec is grounded on,
// Calloc checks Malloc's error before zeroing instead of risking a nil
// dereference (spec.md §9's second flagged bug; resolved, not reproduced —
// DESIGN.md open question 2). memory.go's own Calloc already gets this
// right (memory.go:141-160); segheap follows that precedent.
func (a *Allocator) Calloc(k, n int) ([]byte, error) {
	total, err := mulSize(k, n)
	if err != nil {
		return nil, err
	}

	b, err := a.Malloc(total)
	if err != nil {
		return nil, err
	}
	for i := range b {
		b[i] = 0
	}
	return b, nil
}

// Free deallocates memory acquired from Malloc, Calloc, or Realloc. Freeing
// a zero-length or nil slice is a no-op, matching memory.Free's contract
// (memory.go:177-191). Freeing anything else is the caller's
// responsibility to get right: segheap does not detect double-frees or
// foreign pointers (spec.md §7's UndefinedBehavior category).
func (a *Allocator) Free(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&b[0]))
	a.liveBytes -= blockAt(addr).size() - wordSize
	a.release(blockAt(addr))
	return nil
}

// Realloc changes the size of b's backing block to n bytes, preserving
// contents up to min(len(b), n). Semantics otherwise match
// memory.Realloc's doc comment (memory.go:311-320): cap(b)==0 behaves like
// Malloc(n); n==0 behaves like Free(b); if the block moves, the old one is
// released.
func (a *Allocator) Realloc(b []byte, n int) ([]byte, error) {
	var p blk
	if len(b) > 0 {
		p = blockAt(uintptr(unsafe.Pointer(&b[0])))
		a.liveBytes -= p.size() - wordSize
	}

	r, err := a.resize(p, n)
	if err != nil {
		if p.valid() {
			a.liveBytes += p.size() - wordSize
		}
		return nil, err
	}
	if !r.valid() {
		return nil, nil
	}

	a.liveBytes += r.size() - wordSize
	return bytesAt(r.addr, n), nil
}

// ---- unsafe.Pointer API, named after memory.go's Unsafe* siblings ----

// UnsafeMalloc is like Malloc except it returns an unsafe.Pointer.
func (a *Allocator) UnsafeMalloc(n int) (unsafe.Pointer, error) {
	b, err := a.allocate(n)
	if err != nil || !b.valid() {
		return nil, err
	}
	a.liveBytes += b.size() - wordSize
	return unsafe.Pointer(b.addr), nil
}

// UnsafeCalloc is like Calloc except it returns an unsafe.Pointer.
func (a *Allocator) UnsafeCalloc(k, n int) (unsafe.Pointer, error) {
	total, err := mulSize(k, n)
	if err != nil {
		return nil, err
	}

	p, err := a.UnsafeMalloc(total)
	if err != nil || p == nil {
		return p, err
	}
	zeroBytes(uintptr(p), total)
	return p, nil
}

// UnsafeFree is like Free except its argument must have been acquired from
// UnsafeMalloc, UnsafeCalloc, or UnsafeRealloc.
func (a *Allocator) UnsafeFree(p unsafe.Pointer) error {
	if p == nil {
		return nil
	}
	b := blockAt(uintptr(p))
	a.liveBytes -= b.size() - wordSize
	a.release(b)
	return nil
}

// UnsafeRealloc is like Realloc except p and its result are unsafe.Pointer.
func (a *Allocator) UnsafeRealloc(p unsafe.Pointer, n int) (unsafe.Pointer, error) {
	var b blk
	if p != nil {
		b = blockAt(uintptr(p))
		a.liveBytes -= b.size() - wordSize
	}

	r, err := a.resize(b, n)
	if err != nil {
		if b.valid() {
			a.liveBytes += b.size() - wordSize
		}
		return nil, err
	}
	if !r.valid() {
		return nil, nil
	}

	a.liveBytes += r.size() - wordSize
	return unsafe.Pointer(r.addr), nil
}

// UnsafeUsableSize reports the size of the memory block allocated at p,
// which must point at the payload of a block returned by UnsafeMalloc,
// UnsafeCalloc, or UnsafeRealloc. The usable size can exceed the size
// originally requested, since requests are rounded up to the allocator's
// size-class and alignment granularity.
func UnsafeUsableSize(p unsafe.Pointer) int {
	if p == nil {
		return 0
	}
	return blockAt(uintptr(p)).size() - wordSize
}

// release marks b free and hands it to the coalescer, spec.md §4.6's entry
// point for the release operation.
func (a *Allocator) release(b blk) {
	if !b.valid() {
		return
	}
	a.allocs--
	b.writeFree(b.size(), b.prevAllocated())
	a.coalesce(b)
	a.LastDiagnostics = a.checkIfEnabled(0)
}

func mulSize(k, n int) (int, error) {
	if k < 0 || n < 0 {
		return 0, ErrInvalidArgument
	}
	if k == 0 || n == 0 {
		return 0, nil
	}
	total := k * n
	if total/k != n {
		return 0, ErrInvalidArgument
	}
	return total, nil
}
