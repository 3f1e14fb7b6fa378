// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

// extendHeap grows the heap by at least n bytes, aligning the request,
// handing the new space to the coalescer so it can absorb a free block that
// was sitting at the old heap tail. Mirrors memory.go's newPage/
// newSharedPage "ask the region for bytes, install a header, register it"
// shape (memory.go:108-132), generalized to a single growing free-list
// region instead of one mmap per page.
func (a *Allocator) extendHeap(n int) (blk, error) {
	n = align(n)
	if n < minBlock {
		n = minBlock
	}

	// The old epilogue's trailing wordSize bytes are already committed;
	// growing by exactly n covers the new block's remaining bytes plus
	// the new epilogue's wordSize (the new epilogue occupies the last
	// wordSize bytes of what we just committed, symmetric with how the
	// old epilogue's word is now repurposed as the new block's header).
	if _, err := a.region.Extend(n); err != nil {
		return blk{}, exhausted(n, err)
	}

	// The old epilogue's address, in blk terms, is exactly where the new
	// free block's header belongs: both are "header address + wordSize".
	// Read the old epilogue's prevAllocated bit before overwriting it.
	newBlock := blockAt(a.epilogueAddr)
	prevAllocated := newBlock.prevAllocated()
	newBlock.writeFree(n, prevAllocated)

	a.epilogueAddr = newBlock.addr + uintptr(n)
	blockAt(a.epilogueAddr).setHeader(packHeader(0, false, true))

	a.totalExtended += n
	return a.coalesce(newBlock), nil
}
