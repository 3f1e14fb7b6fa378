// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import "unsafe"

// sliceRegion is a RegionProvider backed by one ordinary, never-reallocated
// Go byte slice. It exists for tests and hosts without raw mmap rights: it
// gives the same "stable base address, growable used-prefix" contract as
// the platform mmapRegion without touching the OS, at the cost of reserving the
// whole MaxRegion up front as real process memory instead of reserved
// address space.
//
// The backing array is allocated once at construction time and never grows,
// exactly like the production providers: Go's runtime never moves a slice's
// backing array, so the pointer-compression scheme's stability requirement
// holds here too.
type sliceRegion struct {
	mem  []byte
	used int
}

func newSliceRegion(maxRegion int) (*sliceRegion, error) {
	return &sliceRegion{mem: make([]byte, maxRegion)}, nil
}

func (r *sliceRegion) Low() uintptr { return uintptr(unsafe.Pointer(&r.mem[0])) }

func (r *sliceRegion) High() uintptr { return r.Low() + uintptr(r.used) }

func (r *sliceRegion) Extend(n int) (uintptr, error) {
	if n < 0 {
		panic("segheap: negative extend")
	}

	newUsed := r.used + n
	if newUsed > len(r.mem) {
		return 0, &ErrRegionExhausted{Requested: n}
	}

	base := r.Low() + uintptr(r.used)
	r.used = newUsed
	return base, nil
}

func (r *sliceRegion) Close() error {
	r.mem = nil
	r.used = 0
	return nil
}
