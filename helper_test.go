// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import "testing"

// newTestAllocator builds an Allocator over a fixed-size sliceRegion instead
// of the platform mmap default, the same "inject a fake backing store"
// pattern cznic-exp/dbm's tests use for their own Filer abstraction. maxRegion
// bounds how much the test can allocate before hitting ErrExhausted.
func newTestAllocator(t *testing.T, maxRegion int, opts ...Option) *Allocator {
	t.Helper()

	r, err := newSliceRegion(maxRegion)
	if err != nil {
		t.Fatal(err)
	}

	all := append([]Option{WithRegion(r), WithMaxRegion(maxRegion)}, opts...)
	a, err := New(all...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func assertNoViolations(t *testing.T, a *Allocator, line int) {
	t.Helper()
	if ds := a.Check(line); len(ds) != 0 {
		for _, d := range ds {
			t.Errorf("%s", d)
		}
		t.FailNow()
	}
}
