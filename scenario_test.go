// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import (
	"testing"
	"unsafe"
)

// addrOf returns the raw address backing a []byte returned by Malloc et al.
func addrOf(b []byte) uintptr { return uintptr(unsafe.Pointer(&b[0])) }

// Scenario 1: an empty heap's very first allocate(1) returns an 8-byte
// aligned pointer whose block header reports the minimum block size, with
// prev_allocated set because the prologue immediately precedes it.
func TestScenarioFirstAllocateIsMinimumBlock(t *testing.T) {
	a := newTestAllocator(t, 1<<16)

	p, err := a.Malloc(1)
	if err != nil {
		t.Fatal(err)
	}
	addr := addrOf(p)

	if addr%alignment != 0 {
		t.Fatalf("address %#x not %d-byte aligned", addr, alignment)
	}
	if got := blockAt(addr).size(); got != minBlock {
		t.Fatalf("header size = %d, want %d", got, minBlock)
	}
	if !blockAt(addr).prevAllocated() {
		t.Fatal("prev_allocated = false, want true (prologue precedes)")
	}
	assertNoViolations(t, a, 1)
}

// Scenario 2: two equal-size allocations released in order coalesce into a
// single free block sized to exactly their combined span, landing in the bin
// that block size belongs to, with no other free block left over. A tight
// InitialChunk (matching the combined request size) keeps the heap from
// growing beyond exactly what a and b need, so there is no leftover chunk
// remainder to confuse the "no other free blocks" assertion.
func TestScenarioReleaseInOrderCoalescesToOneBlock(t *testing.T) {
	asize := requestSize(24)
	a := newTestAllocator(t, 1<<16, WithInitialChunk(2*asize))

	pa, err := a.Malloc(24)
	if err != nil {
		t.Fatal(err)
	}
	pb, err := a.Malloc(24)
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Free(pa); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(pb); err != nil {
		t.Fatal(err)
	}

	wantSize := 2 * asize
	wantBin := binOf(wantSize)

	free := 0
	for bin := 0; bin < nBins; bin++ {
		for cur := a.binHead(bin); cur.valid(); cur = a.blockFromOffset(cur.rawNextOffset()) {
			free++
			if bin != wantBin {
				t.Fatalf("free block of size %d found in bin %d, want bin %d", cur.size(), bin, wantBin)
			}
			if cur.size() != wantSize {
				t.Fatalf("merged free block size = %d, want %d", cur.size(), wantSize)
			}
		}
	}
	if free != 1 {
		t.Fatalf("found %d free blocks, want exactly 1", free)
	}
	assertNoViolations(t, a, 2)
}

// Scenario 3: shrinking a block in place returns the same pointer and leaves
// a usable trailing free block behind.
func TestScenarioShrinkInPlace(t *testing.T) {
	a := newTestAllocator(t, 1<<16)

	p, err := a.Malloc(100)
	if err != nil {
		t.Fatal(err)
	}
	pAddr := addrOf(p)

	q, err := a.Realloc(p, 50)
	if err != nil {
		t.Fatal(err)
	}
	if addrOf(q) != pAddr {
		t.Fatalf("resize moved the block: got %#x, want %#x", addrOf(q), pAddr)
	}

	succ := blockAt(pAddr).succ()
	if succ.allocated() {
		t.Fatal("no trailing free block was split off")
	}
	if succ.size() < minBlock {
		t.Fatalf("trailing free block size = %d, want >= %d", succ.size(), minBlock)
	}
	assertNoViolations(t, a, 3)
}

// Scenario 4: growing a block into a just-freed, physically adjacent
// successor expands in place and absorbs that successor's block.
func TestScenarioExpandIntoFreedSuccessor(t *testing.T) {
	a := newTestAllocator(t, 1<<16)

	p, err := a.Malloc(100)
	if err != nil {
		t.Fatal(err)
	}
	pAddr := addrOf(p)

	q, err := a.Malloc(100)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Free(q); err != nil {
		t.Fatal(err)
	}

	r, err := a.Realloc(p, 180)
	if err != nil {
		t.Fatal(err)
	}
	if addrOf(r) != pAddr {
		t.Fatalf("expand moved the block: got %#x, want %#x", addrOf(r), pAddr)
	}
	if got := blockAt(pAddr).size(); got < requestSize(180) {
		t.Fatalf("expanded block size = %d, want >= %d", got, requestSize(180))
	}
	assertNoViolations(t, a, 4)
}

// Scenario 5: with the default initial chunk, a run of small sequential
// allocations never extends the heap more often than the byte budget
// requires.
func TestScenarioSequentialAllocationsBoundExtensions(t *testing.T) {
	const n = 32
	a := newTestAllocator(t, 1<<16, WithInitialChunk(defaultInitialChunk))

	for i := 0; i < n; i++ {
		if _, err := a.Malloc(8); err != nil {
			t.Fatalf("allocate #%d: %v", i, err)
		}
	}

	maxExtensions := (n*minBlock + defaultInitialChunk - 1) / defaultInitialChunk
	gotExtensions := a.totalExtended / defaultInitialChunk
	if gotExtensions > maxExtensions {
		t.Fatalf("heap extended %d times, want at most %d", gotExtensions, maxExtensions)
	}
	assertNoViolations(t, a, 5)
}

// Scenario 6: a request far larger than the region can ever hold fails
// cleanly, and the heap is left exactly as invariant-clean as before the
// attempt.
func TestScenarioHugeAllocateFailsWithoutCorruption(t *testing.T) {
	a := newTestAllocator(t, 1<<16)

	before := a.Check(6)

	_, err := a.Malloc(1 << 30)
	if err == nil {
		t.Fatal("want an error allocating far more than the region can hold")
	}

	after := a.Check(6)
	if len(before) != 0 || len(after) != 0 {
		t.Fatalf("invariant violations before=%v after=%v", before, after)
	}
	if a.allocs != 0 {
		t.Fatalf("allocs = %d after a failed allocate, want 0", a.allocs)
	}
}
