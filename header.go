// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import "unsafe"

// A header is the 4-byte word stored at a block's offset -wordSize from its
// payload. Layout, from the low bit: bit 0 is the allocated flag, bit 1 is
// prevAllocated, the remaining upper bits hold size (always a multiple of
// alignment, so the low align bits of size are free for flags).
type header uint32

const (
	flagAlloc     header = 1 << 0
	flagPrevAlloc header = 1 << 1
	sizeMask      header = ^header(0) &^ (flagAlloc | flagPrevAlloc)
)

func packHeader(size int, prevAlloc, alloc bool) header {
	h := header(size) &^ (flagAlloc | flagPrevAlloc)
	if prevAlloc {
		h |= flagPrevAlloc
	}
	if alloc {
		h |= flagAlloc
	}
	return h
}

func (h header) size() int          { return int(h & sizeMask) }
func (h header) allocated() bool    { return h&flagAlloc != 0 }
func (h header) prevAllocated() bool { return h&flagPrevAlloc != 0 }

// withSizeAlloc rewrites size and the allocated bit, preserving whatever
// prevAllocated bit h already carried. This is essential on free->alloc and
// alloc->free transitions: the predecessor's idea of "am I allocated" must
// never be clobbered by a block rewriting its own header.
func (h header) withSizeAlloc(size int, alloc bool) header {
	return packHeader(size, h.prevAllocated(), alloc)
}

func (h header) withPrevAllocated(prevAlloc bool) header {
	return packHeader(h.size(), prevAlloc, h.allocated())
}

// blk is a one-word view over a block living inside the allocator's region:
// it holds only addr, the payload address, and never owns the block's bytes.
// Every method is pointer arithmetic against addr. Free-list siblings and boundary-tag neighbors
// are reached the same way, never through a Go pointer field, so that the
// on-disk/in-region layout segheap maintains matches exactly what spec.md
// describes (compressed 32-bit offsets, not native pointers).
type blk struct {
	addr uintptr
}

func blockAt(addr uintptr) blk { return blk{addr} }

func (b blk) valid() bool { return b.addr != 0 }

func (b blk) headerAddr() uintptr { return b.addr - wordSize }

func (b blk) header() header {
	return *(*header)(unsafe.Pointer(b.headerAddr()))
}

func (b blk) setHeader(h header) {
	*(*header)(unsafe.Pointer(b.headerAddr())) = h
}

func (b blk) size() int          { return b.header().size() }
func (b blk) allocated() bool    { return b.header().allocated() }
func (b blk) prevAllocated() bool { return b.header().prevAllocated() }

// footerAddr is valid only for free blocks; allocated blocks have no
// footer, per spec.md's footer-elision scheme.
func (b blk) footerAddr() uintptr { return b.addr + uintptr(b.size()) - 2*wordSize }

func (b blk) footer() header {
	return *(*header)(unsafe.Pointer(b.footerAddr()))
}

func (b blk) setFooter(h header) {
	*(*header)(unsafe.Pointer(b.footerAddr())) = h
}

// writeFree installs a full free-block header+footer pair, preserving the
// incoming prevAllocated bit on the header (the footer never carries it —
// it is only ever consulted through prevAllocated()==false, which guarantees
// the predecessor already has a valid footer of its own).
func (b blk) writeFree(size int, prevAlloc bool) {
	h := packHeader(size, prevAlloc, false)
	b.setHeader(h)
	b.setFooter(h &^ flagPrevAlloc)
}

// writeAllocPreservingPrevAlloc installs an allocated header at the given
// size without disturbing the existing prevAllocated bit.
func (b blk) writeAllocPreservingPrevAlloc(size int) {
	b.setHeader(b.header().withSizeAlloc(size, true))
}

func (b blk) setPrevAllocated(prevAlloc bool) {
	b.setHeader(b.header().withPrevAllocated(prevAlloc))
}

// succ returns the physically following block. Callers must not call succ on
// the epilogue.
func (b blk) succ() blk { return blockAt(b.addr + uintptr(b.size())) }

// pred returns the physically preceding block. Valid only when
// !b.prevAllocated(), which guarantees pred carries a footer.
func (b blk) pred() blk {
	footerAddr := b.addr - 2*wordSize
	ph := *(*header)(unsafe.Pointer(footerAddr))
	return blockAt(b.addr - uintptr(ph.size()))
}

// Free-list sibling slots: next at payload+0, prev at payload+wordSize, both
// stored as offsets compressed against the allocator's anchor. An offset of
// 0 means NIL; the anchor itself is the prologue header's address, which a
// blk.addr (always headerAddr+wordSize) can never equal, so 0 stays
// unambiguous even when the first real block in the heap is free.
func (b blk) nextOffsetAddr() uintptr { return b.addr }
func (b blk) prevOffsetAddr() uintptr { return b.addr + wordSize }

func (b blk) rawNextOffset() uint32 { return *(*uint32)(unsafe.Pointer(b.nextOffsetAddr())) }
func (b blk) rawPrevOffset() uint32 { return *(*uint32)(unsafe.Pointer(b.prevOffsetAddr())) }

func (b blk) setRawNextOffset(o uint32) { *(*uint32)(unsafe.Pointer(b.nextOffsetAddr())) = o }
func (b blk) setRawPrevOffset(o uint32) { *(*uint32)(unsafe.Pointer(b.prevOffsetAddr())) = o }

// offsetOf/blockFromOffset implement the anchor-relative pointer compression
// scheme: offset==0 is NIL, otherwise offset = addr - anchor, fitting in a
// uint32 because the region is bounded to at most 1<<32 bytes (spec.md §1).
func (a *Allocator) offsetOf(b blk) uint32 {
	if !b.valid() {
		return 0
	}
	return uint32(b.addr - a.anchor)
}

func (a *Allocator) blockFromOffset(o uint32) blk {
	if o == 0 {
		return blk{}
	}
	return blockAt(a.anchor + uintptr(o))
}
