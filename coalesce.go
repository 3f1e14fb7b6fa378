// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

// coalesce merges b with whichever of its physical neighbors are free,
// inserts the resulting block into its bin, and returns it. b must already
// carry a valid free header+footer and must not yet be inserted into any
// bin — both release() and extendHeap() establish that before calling in.
//
// The four cases are an explicit dispatch on (prevAllocated, succAllocated),
// per spec.md §9's "Dispatch over block state... explicit match, not an
// inheritance hierarchy". There is no direct teacher analog: memory.go's
// fixed-size-class slab slots never need to merge with a neighbor (see
// DESIGN.md).
func (a *Allocator) coalesce(b blk) blk {
	prevAlloc := b.prevAllocated()
	succ := b.succ()
	succAlloc := succ.allocated()

	var merged blk
	switch {
	case prevAlloc && succAlloc:
		merged = b

	case prevAlloc && !succAlloc:
		a.removeFree(succ)
		merged = b
		merged.writeFree(b.size()+succ.size(), true)

	case !prevAlloc && succAlloc:
		pred := b.pred()
		a.removeFree(pred)
		merged = pred
		merged.writeFree(pred.size()+b.size(), pred.prevAllocated())

	default: // !prevAlloc && !succAlloc
		pred := b.pred()
		a.removeFree(pred)
		a.removeFree(succ)
		merged = pred
		merged.writeFree(pred.size()+b.size()+succ.size(), pred.prevAllocated())
	}

	merged.succ().setPrevAllocated(false)
	a.insertFree(merged)
	return merged
}
