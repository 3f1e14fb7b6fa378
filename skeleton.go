// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import "unsafe"

// initSkeleton lays out the persisted state described by spec.md §6 at the
// base of a freshly constructed region: the three seglist arrays, the
// prologue, and the initial epilogue, then requests InitialChunk bytes from
// the heap extender to seed the first free block. Mirrors memory.go's
// package-level layout-constant computation (memory.go:58-64), generalized
// from "compute a few fixed offsets once" to "lay out a whole header
// region", and dbm.Create's "construct, then populate" constructor shape
// (_examples/cznic-exp/dbm/dbm.go).
func (a *Allocator) initSkeleton() error {
	// The seglist arrays end on an alignment-byte boundary, but the
	// prologue's header needs to start wordSize bytes short of one: its
	// 8 bytes plus the one header word of the first real block land that
	// block's payload back on an alignment-byte boundary. pad is the
	// classic malloc-lab alignment-padding word, sized however short
	// seglistBytes already is of that residue.
	pad := (wordSize - seglistBytes%alignment + alignment) % alignment
	headerRegion := seglistBytes + pad + prologueSize + epilogueSize

	base, err := a.region.Extend(headerRegion)
	if err != nil {
		return exhausted(headerRegion, err)
	}

	for i := 0; i < nBins; i++ {
		a.setHeadOffset(i, 0)
		a.setTailOffset(i, 0)
		a.setBinUpperBound(i, binBound(i))
	}

	prologueHeaderAddr := base + uintptr(seglistBytes+pad)
	a.anchor = prologueHeaderAddr

	prologueHeader := packHeader(prologueSize, true, true)
	*(*header)(unsafe.Pointer(prologueHeaderAddr)) = prologueHeader
	*(*header)(unsafe.Pointer(prologueHeaderAddr + wordSize)) = prologueHeader

	// heapBase is the first real block's address in blk convention
	// (header address + wordSize), i.e. one word past where the
	// prologue's 8 bytes end.
	a.heapBase = prologueHeaderAddr + prologueSize + wordSize
	// The epilogue starts out occupying the very first slot, with no
	// heap extension performed yet; prevAllocated mirrors the prologue,
	// which is allocated.
	a.epilogueAddr = a.heapBase
	blockAt(a.epilogueAddr).setHeader(packHeader(0, true, true))

	if _, err := a.extendHeap(a.opts.InitialChunk); err != nil {
		return err
	}

	return nil
}
