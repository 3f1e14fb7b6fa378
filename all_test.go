// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import (
	"math"
	"testing"
	"unsafe"

	"github.com/cznic/mathutil"
)

// quota bounds how many payload bytes a fuzz pass requests in total before
// it starts releasing, the same shape as the teacher's own quota-bounded
// allocate loop (all_test.go), scaled down from its mmap-page-sized budget
// to fit comfortably inside one sliceRegion-backed test heap.
const quota = 256 << 10

// regionSize is large enough to hold quota's worth of live bytes plus every
// allocation's header overhead and the worst-case fragmentation a best-fit
// policy can leave behind.
const regionSize = 4 * quota

// fuzzMax bounds a single allocation's requested payload size.
const fuzzMax = 4096

// testSequential allocates until quota bytes have been requested, then frees
// every block in the order it was allocated, verifying the written contents
// survive untouched and that the allocator returns to a zero-allocation
// state. Mirrors the teacher's test1 (all_test.go).
func testSequential(t *testing.T, max int) {
	a := newTestAllocator(t, regionSize)
	rem := quota
	var blocks [][]byte

	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	if err != nil {
		t.Fatal(err)
	}
	rng.Seed(42)
	pos := rng.Pos()

	for rem > 0 {
		size := rng.Next()%max + 1
		rem -= size
		b, err := a.Malloc(size)
		if err != nil {
			t.Fatal(err)
		}
		blocks = append(blocks, b)
		for i := range b {
			b[i] = byte(rng.Next())
		}
	}

	rng.Seek(pos)
	for i, b := range blocks {
		if g, e := len(b), rng.Next()%max+1; g != e {
			t.Fatalf("block %d: len = %d, want %d", i, g, e)
		}
		for j, g := range b {
			if e := byte(rng.Next()); g != e {
				t.Fatalf("block %d byte %d: got %#02x, want %#02x", i, j, g, e)
			}
		}
	}

	for i, b := range blocks {
		if err := a.Free(b); err != nil {
			t.Fatalf("free block %d: %v", i, err)
		}
	}

	if a.allocs != 0 {
		t.Fatalf("allocs = %d after freeing every block, want 0", a.allocs)
	}
	assertNoViolations(t, a, 0)
}

func TestSequentialSmall(t *testing.T) { testSequential(t, 64) }
func TestSequentialBig(t *testing.T)   { testSequential(t, fuzzMax) }

// testInterleaved is like testSequential but frees each block immediately
// after re-verifying its contents, interleaving frees with the verify pass
// instead of running them as a separate loop. Mirrors the teacher's test2.
func testInterleaved(t *testing.T, max int) {
	a := newTestAllocator(t, regionSize)
	rem := quota
	var blocks [][]byte

	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	if err != nil {
		t.Fatal(err)
	}
	rng.Seed(42)
	pos := rng.Pos()

	for rem > 0 {
		size := rng.Next()%max + 1
		rem -= size
		b, err := a.Malloc(size)
		if err != nil {
			t.Fatal(err)
		}
		blocks = append(blocks, b)
		for i := range b {
			b[i] = byte(rng.Next())
		}
	}

	rng.Seek(pos)
	for i, b := range blocks {
		if g, e := len(b), rng.Next()%max+1; g != e {
			t.Fatalf("block %d: len = %d, want %d", i, g, e)
		}
		for j, g := range b {
			if e := byte(rng.Next()); g != e {
				t.Fatalf("block %d byte %d: got %#02x, want %#02x", i, j, g, e)
			}
		}
		if err := a.Free(b); err != nil {
			t.Fatalf("free block %d: %v", i, err)
		}
	}

	if a.allocs != 0 {
		t.Fatalf("allocs = %d after freeing every block, want 0", a.allocs)
	}
	assertNoViolations(t, a, 0)
}

func TestInterleavedSmall(t *testing.T) { testInterleaved(t, 64) }
func TestInterleavedBig(t *testing.T)   { testInterleaved(t, fuzzMax) }

// testRandom drives a random mix of allocate and free against a shadow map
// keyed by each live block's first byte address, the same shape as the
// teacher's test3 (Realloc gets its own dedicated coverage in
// scenario_test.go's shrink/expand scenarios and invariants_test.go).
func testRandom(t *testing.T, max int) {
	a := newTestAllocator(t, regionSize)
	rem := quota
	shadow := map[*byte][]byte{}

	rng, err := mathutil.NewFC32(1, max, true)
	if err != nil {
		t.Fatal(err)
	}

	for rem > 0 || len(shadow) > 0 {
		op := rng.Next() % 3
		if rem <= 0 {
			op = 2 // force a free once the budget is spent
		}
		switch {
		case op == 0 || op == 1: // 2/3 allocate
			size := rng.Next()
			rem -= size
			b, err := a.Malloc(size)
			if err != nil {
				t.Fatal(err)
			}
			for i := range b {
				b[i] = byte(rng.Next())
			}
			shadow[&b[0]] = append([]byte(nil), b...)
		default: // 1/3 free
			for k, want := range shadow {
				b := unsafeSliceFromPtr(k, len(want))
				for i, g := range b {
					if g != want[i] {
						t.Fatalf("live block corrupted at byte %d: got %#02x, want %#02x", i, g, want[i])
					}
				}
				if err := a.Free(b); err != nil {
					t.Fatal(err)
				}
				delete(shadow, k)
				break
			}
		}
	}

	for k, want := range shadow {
		b := unsafeSliceFromPtr(k, len(want))
		if err := a.Free(b); err != nil {
			t.Fatal(err)
		}
		delete(shadow, k)
	}

	if a.allocs != 0 {
		t.Fatalf("allocs = %d after freeing every block, want 0", a.allocs)
	}
	assertNoViolations(t, a, 0)
}

func TestRandomSmall(t *testing.T) { testRandom(t, 256) }
func TestRandomBig(t *testing.T)   { testRandom(t, fuzzMax) }

// unsafeSliceFromPtr reconstructs a []byte view from the *byte key a shadow
// map uses to identify a live allocation without holding the slice header
// itself.
func unsafeSliceFromPtr(p *byte, n int) []byte {
	return bytesAt(uintptr(unsafe.Pointer(p)), n)
}
