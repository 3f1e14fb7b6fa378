// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import "fmt"

// RegionProvider is the external collaborator spec.md describes: a
// contiguous, never-shrinking byte region that can only grow, plus the
// addresses bounding its currently committed extent. Implementations must
// hand back a stable base address across calls to Extend — segheap's
// pointer-compression scheme (offset = addr - anchor) depends on the region
// never moving once bytes have been handed out.
type RegionProvider interface {
	// Low is the address of the first committed byte. It never changes
	// after the first successful Extend.
	Low() uintptr

	// High is the address one past the last committed byte.
	High() uintptr

	// Extend grows the committed extent by n bytes (already rounded to
	// alignment by the caller) and returns the address of the first new
	// byte, i.e. the old High(). It returns an error if the provider has
	// no more address space or memory to commit.
	Extend(n int) (base uintptr, err error)

	// Close releases the region's OS resources. Using the provider after
	// Close is undefined behavior.
	Close() error
}

// ErrRegionExhausted is returned by a RegionProvider when it cannot grow any
// further, either because it hit MaxRegion or because the OS refused to
// commit more memory.
type ErrRegionExhausted struct {
	Requested int
	Err       error
}

func (e *ErrRegionExhausted) Error() string {
	return fmt.Sprintf("segheap: region exhausted requesting %d bytes: %v", e.Requested, e.Err)
}

func (e *ErrRegionExhausted) Unwrap() error { return e.Err }
