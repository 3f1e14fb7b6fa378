// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import "os"

const (
	// wordSize is the width of a header/offset field, spec.md's "word"
	// knob.
	wordSize = 4

	// alignment is the payload alignment guaranteed to every caller.
	alignment = 8

	// minBlock is the smallest block size: header + next + prev +
	// footer, spec.md §3.
	minBlock = 16

	// splitThreshold is the minimum slack required before place() bothers
	// splitting off a remainder block instead of handing over the whole
	// thing.
	splitThreshold = minBlock

	// nBins is the number of segregated free lists, spec.md §4.3.
	nBins = 12

	// defaultInitialChunk is the size of the first chunk requested from
	// the region provider when New lays out the heap, spec.md §4.2.
	defaultInitialChunk = 256

	// defaultMaxRegion is the hard cap on total region size: spec.md §1
	// requires offsets to fit a 32-bit word, so the region can never
	// exceed 1<<32 bytes.
	defaultMaxRegion = 1 << 32

	// prologueSize is the size of the synthetic allocated block placed at
	// the start of the walkable heap. It carries no payload, only a
	// header and footer, so coalescing never walks before it.
	prologueSize = 2 * wordSize

	// epilogueSize is the size of the zero-payload allocated sentinel
	// that terminates the walkable heap.
	epilogueSize = wordSize
)

var (
	osPageSize = os.Getpagesize()
	osPageMask = osPageSize - 1
)

// align rounds n up to the next multiple of alignment.
func align(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

// roundup rounds n up to the next multiple of m, which must be a power of 2.
func roundup(n, m int) int {
	return (n + m - 1) &^ (m - 1)
}
