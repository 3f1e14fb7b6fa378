// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

// requestSize rounds a caller's payload size up to the allocator's minimum
// block size and alignment, reserving wordSize bytes for the header.
func requestSize(n int) int {
	size := align(n + wordSize)
	if size < minBlock {
		size = minBlock
	}
	return size
}

// findFit searches bins starting at binOf(asize) for a block big enough to
// hold asize bytes. Within a bin it applies the allocator's FitPolicy:
// FitBest scans the whole bin (subject to the spec's early-exit slack
// threshold — a candidate within splitThreshold of asize is accepted
// immediately without scanning further) and FitFirst takes the first fit.
// The first block of any bin beyond the starting one is unconditionally
// acceptable, since every block in a higher bin is by construction >=
// asize (spec.md §4.5).
func (a *Allocator) findFit(asize int) blk {
	start := binOf(asize)
	for bin := start; bin < nBins; bin++ {
		var best blk
		for cur := a.binHead(bin); cur.valid(); cur = a.blockFromOffset(cur.rawNextOffset()) {
			if cur.size() < asize {
				continue
			}

			if bin > start {
				// Any block in a strictly larger bin already
				// satisfies asize by construction.
				return cur
			}

			if a.opts.Fit == FitFirst {
				return cur
			}

			if !best.valid() || cur.size() < best.size() {
				best = cur
			}
			if best.size()-asize < splitThreshold {
				break
			}
		}

		if best.valid() {
			return best
		}
	}

	return blk{}
}

// allocate is the placement engine's entry point: spec.md §4.5. n==0 is
// success with a nil result, not an error.
func (a *Allocator) allocate(n int) (blk, error) {
	if n < 0 {
		return blk{}, ErrInvalidArgument
	}
	if n == 0 {
		return blk{}, nil
	}

	asize := requestSize(n)
	b := a.findFit(asize)
	if !b.valid() {
		grown, err := a.extendHeap(maxInt(asize, a.opts.InitialChunk))
		if err != nil {
			return blk{}, err
		}
		// grown may be larger than asize (it absorbed a trailing
		// free block via coalesce), never smaller: extendHeap was
		// asked for at least asize bytes of fresh space, so grown
		// always satisfies asize.
		b = grown
	}

	a.place(b, asize)
	a.allocs++
	result := blockAt(b.addr)
	a.LastDiagnostics = a.checkIfEnabled(0)
	return result, nil
}

// place installs an allocated header at asize inside b, splitting off a
// free remainder when the slack is large enough to form a valid block.
// Removing b from its free list happens before its header is rewritten, so
// the free-list decoder (which reads b's sibling offsets out of what is
// about to become header+payload bytes) never observes a stale or
// already-overwritten header word — spec.md §9's third flagged ordering
// concern, resolved here by construction (see DESIGN.md open question 3).
func (a *Allocator) place(b blk, asize int) {
	a.removeFree(b)
	total := b.size()

	if total-asize >= splitThreshold {
		b.writeAllocPreservingPrevAlloc(asize)

		tail := blockAt(b.addr + uintptr(asize))
		tail.writeFree(total-asize, true)
		tail.succ().setPrevAllocated(false)
		a.insertFree(tail)
		return
	}

	b.writeAllocPreservingPrevAlloc(total)
	b.succ().setPrevAllocated(true)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
