// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

// resize implements spec.md §4.7. ptr==blk{} (NIL) dispatches to allocate;
// n==0 dispatches to release and returns NIL. Mirrors the dispatch shape of
// memory.go's Realloc/UnsafeRealloc (memory.go:321-350, 508-539) — "nil in
// is Malloc, zero out is Free, shrinking is free, else Malloc+copy+Free" —
// generalized with the in-place shrink/grow cases the spec requires, which
// a fixed-size-class slab allocator like memory.go's never needs (a slab
// slot can't grow into its same-size neighbor).
func (a *Allocator) resize(p blk, n int) (blk, error) {
	if !p.valid() {
		return a.allocate(n)
	}
	if n == 0 {
		a.release(p)
		return blk{}, nil
	}
	if n < 0 {
		return blk{}, ErrInvalidArgument
	}

	old := p.size()
	asize := requestSize(n)

	if old >= asize {
		r := a.resizeShrink(p, asize)
		a.LastDiagnostics = a.checkIfEnabled(0)
		return r, nil
	}

	succ := p.succ()
	if !succ.allocated() && old+succ.size() >= asize {
		r := a.resizeExpandIntoSuccessor(p, succ, asize)
		a.LastDiagnostics = a.checkIfEnabled(0)
		return r, nil
	}

	return a.resizeFallback(p, n)
}

// resizeShrink handles the old >= asize branch of spec.md §4.7 step 1. It
// first tries to absorb a free physical successor so the remainder left
// behind is as large as possible (lower fragmentation), then splits off the
// remainder if the resulting slack is big enough, otherwise leaves the
// block untouched but still fixes the successor's prevAllocated bit.
func (a *Allocator) resizeShrink(p blk, asize int) blk {
	old := p.size()
	succ := p.succ()
	if !succ.allocated() {
		a.removeFree(succ)
		old += succ.size()
		succ = blk{}
	}

	if old-asize < splitThreshold {
		if old != p.size() {
			// Absorbed a successor but the combined slack still
			// isn't enough to split: keep the whole thing as one
			// allocated block.
			p.writeAllocPreservingPrevAlloc(old)
		}
		p.succ().setPrevAllocated(true)
		return p
	}

	p.writeAllocPreservingPrevAlloc(asize)
	remainder := blockAt(p.addr + uintptr(asize))
	remainder.writeFree(old-asize, true)
	remainder.succ().setPrevAllocated(false)
	a.insertFree(remainder)
	return p
}

// resizeExpandIntoSuccessor handles spec.md §4.7 step 2: the physical
// successor is free and large enough, on its own, to cover the shortfall.
func (a *Allocator) resizeExpandIntoSuccessor(p, succ blk, asize int) blk {
	a.removeFree(succ)
	combined := p.size() + succ.size()

	if combined-asize >= splitThreshold {
		p.writeAllocPreservingPrevAlloc(asize)
		remainder := blockAt(p.addr + uintptr(asize))
		remainder.writeFree(combined-asize, true)
		remainder.succ().setPrevAllocated(false)
		a.insertFree(remainder)
		return p
	}

	p.writeAllocPreservingPrevAlloc(combined)
	p.succ().setPrevAllocated(true)
	return p
}

// resizeFallback is spec.md §4.7 step 3: allocate fresh, copy
// min(old_payload, n) bytes — not n, which would risk reading past a
// smaller source block (spec.md §9's first flagged bug; resolved here, not
// reproduced — see DESIGN.md open question 1) — then release the original.
func (a *Allocator) resizeFallback(p blk, n int) (blk, error) {
	fresh, err := a.allocate(n)
	if err != nil {
		return blk{}, err
	}

	oldPayload := p.size() - wordSize
	if oldPayload > n {
		oldPayload = n
	}
	copyBytes(fresh.addr, p.addr, oldPayload)
	a.release(p)
	return fresh, nil
}
