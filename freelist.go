// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

// insertFree positions b within its bin's free list according to
// a.opts.Insert. InsertLIFO pushes onto the head, the same head-splice shape
// memory.go's own Free/UnsafeFree use for their single-size-class lists
// (memory.go:200-206, 398-404), generalized to nBins independent lists
// addressed through compressed offsets instead of real *node pointers.
// InsertAddressOrdered instead walks the bin to keep it sorted by address.
func (a *Allocator) insertFree(b blk) {
	if a.opts.Insert == InsertAddressOrdered {
		a.insertFreeAddressOrdered(b)
		return
	}

	bin := binOf(b.size())
	head := a.binHead(bin)

	b.setRawPrevOffset(0)
	b.setRawNextOffset(a.offsetOf(head))
	if head.valid() {
		head.setRawPrevOffset(a.offsetOf(b))
	} else {
		a.setTailOffset(bin, a.offsetOf(b))
	}
	a.setHeadOffset(bin, a.offsetOf(b))
}

// insertFreeAddressOrdered splices b into its bin's list just before the
// first block whose address exceeds b's, keeping the bin sorted ascending
// by address. Same splice primitives as removeFree's default case, run in
// reverse.
func (a *Allocator) insertFreeAddressOrdered(b blk) {
	bin := binOf(b.size())

	var prev blk
	cur := a.binHead(bin)
	for cur.valid() && cur.addr < b.addr {
		prev = cur
		cur = a.blockFromOffset(cur.rawNextOffset())
	}

	b.setRawPrevOffset(a.offsetOf(prev))
	b.setRawNextOffset(a.offsetOf(cur))

	if prev.valid() {
		prev.setRawNextOffset(a.offsetOf(b))
	} else {
		a.setHeadOffset(bin, a.offsetOf(b))
	}
	if cur.valid() {
		cur.setRawPrevOffset(a.offsetOf(b))
	} else {
		a.setTailOffset(bin, a.offsetOf(b))
	}
}

// removeFree splices b out of whichever bin it currently lives in. Both
// sibling slots of b are left untouched after removal (the caller is about
// to overwrite b's header anyway, either to reallocate it or to rewrite it
// as a differently-sized free block before reinserting).
func (a *Allocator) removeFree(b blk) {
	bin := binOf(b.size())
	prev := a.blockFromOffset(b.rawPrevOffset())
	next := a.blockFromOffset(b.rawNextOffset())

	switch {
	case !prev.valid() && !next.valid():
		a.setHeadOffset(bin, 0)
		a.setTailOffset(bin, 0)
	case !prev.valid():
		a.setHeadOffset(bin, a.offsetOf(next))
		next.setRawPrevOffset(0)
	case !next.valid():
		a.setTailOffset(bin, a.offsetOf(prev))
		prev.setRawNextOffset(a.offsetOf(next))
	default:
		prev.setRawNextOffset(a.offsetOf(next))
		next.setRawPrevOffset(a.offsetOf(prev))
	}
}
