// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import (
	"unsafe"

	"github.com/cznic/mathutil"
)

// The seglist index lives at the very base of the region as three parallel
// uint32 arrays: head offsets, tail offsets, bin upper bounds. binOf(size)
// picks the smallest bin whose bound is >= size, mirroring memory.go's own
// "log := mathutil.BitLen(roundup(size, mallocAllign) - 1)" technique
// (memory.go:261), generalized from one size class per call to a 12-entry
// table of upper bounds.
func binBound(i int) int {
	if i == 0 {
		return 16
	}
	return 1 << uint(i+4)
}

// binOf returns the smallest bin index i with size <= binBound(i), clamped
// to the last bin, which has no finite upper bound.
func binOf(size int) int {
	if size <= 16 {
		return 0
	}

	// mathutil.BitLen(size-1) is the number of bits needed to represent
	// size-1, i.e. ceil(log2(size)) when size is not itself a power of
	// two boundary; bins are spaced in powers of two starting at 1<<4,
	// so subtracting 4 maps bit-length directly to a bin index.
	i := mathutil.BitLen(size-1) - 4
	if i < 1 {
		i = 1
	}
	if i > nBins-1 {
		i = nBins - 1
	}
	return i
}

func (a *Allocator) headArrayAddr() uintptr { return a.region.Low() }
func (a *Allocator) tailArrayAddr() uintptr { return a.headArrayAddr() + nBins*wordSize }
func (a *Allocator) boundArrayAddr() uintptr { return a.tailArrayAddr() + nBins*wordSize }

func (a *Allocator) headOffset(bin int) uint32 {
	return *(*uint32)(unsafe.Pointer(a.headArrayAddr() + uintptr(bin)*wordSize))
}

func (a *Allocator) setHeadOffset(bin int, o uint32) {
	*(*uint32)(unsafe.Pointer(a.headArrayAddr() + uintptr(bin)*wordSize)) = o
}

func (a *Allocator) tailOffset(bin int) uint32 {
	return *(*uint32)(unsafe.Pointer(a.tailArrayAddr() + uintptr(bin)*wordSize))
}

func (a *Allocator) setTailOffset(bin int, o uint32) {
	*(*uint32)(unsafe.Pointer(a.tailArrayAddr() + uintptr(bin)*wordSize)) = o
}

func (a *Allocator) binUpperBound(bin int) int {
	return int(*(*uint32)(unsafe.Pointer(a.boundArrayAddr() + uintptr(bin)*wordSize)))
}

func (a *Allocator) setBinUpperBound(bin int, v int) {
	*(*uint32)(unsafe.Pointer(a.boundArrayAddr() + uintptr(bin)*wordSize)) = uint32(v)
}

func (a *Allocator) binHead(bin int) blk { return a.blockFromOffset(a.headOffset(bin)) }
func (a *Allocator) binTail(bin int) blk { return a.blockFromOffset(a.tailOffset(bin)) }

// seglistBytes is the size of the three parallel arrays at the region base.
const seglistBytes = 3 * nBins * wordSize
