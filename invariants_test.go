// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import "testing"

// TestDebugChecksRunAfterEveryMutation exercises Options.DebugChecks: every
// mutating call (allocate, release, resize) must leave LastDiagnostics
// populated with whatever the checker finds, and on a correctly behaving
// allocator that must always be empty.
func TestDebugChecksRunAfterEveryMutation(t *testing.T) {
	a := newTestAllocator(t, 1<<16, WithDebugChecks(false))

	p, err := a.Malloc(40)
	if err != nil {
		t.Fatal(err)
	}
	if a.LastDiagnostics == nil {
		t.Fatal("LastDiagnostics is nil after Malloc with DebugChecks on; want a non-nil (possibly empty) slice")
	}
	if len(a.LastDiagnostics) != 0 {
		t.Fatalf("unexpected diagnostics after Malloc: %v", a.LastDiagnostics)
	}

	q, err := a.Realloc(p, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.LastDiagnostics) != 0 {
		t.Fatalf("unexpected diagnostics after Realloc: %v", a.LastDiagnostics)
	}

	if err := a.Free(q); err != nil {
		t.Fatal(err)
	}
	if len(a.LastDiagnostics) != 0 {
		t.Fatalf("unexpected diagnostics after Free: %v", a.LastDiagnostics)
	}
}

// TestDebugChecksOffLeavesLastDiagnosticsNil confirms the checker is never
// invoked automatically when DebugChecks is unset, so a non-debug allocator
// pays none of the O(heap-block-count) checker cost.
func TestDebugChecksOffLeavesLastDiagnosticsNil(t *testing.T) {
	a := newTestAllocator(t, 1<<16)

	p, err := a.Malloc(40)
	if err != nil {
		t.Fatal(err)
	}
	if a.LastDiagnostics != nil {
		t.Fatalf("LastDiagnostics = %v, want nil with DebugChecks off", a.LastDiagnostics)
	}
	if err := a.Free(p); err != nil {
		t.Fatal(err)
	}
	if a.LastDiagnostics != nil {
		t.Fatalf("LastDiagnostics = %v, want nil with DebugChecks off", a.LastDiagnostics)
	}
}

// TestCheckDetectsCorruptedHeader manually stamps a bad header into a live
// block and confirms Check reports it instead of panicking, the "reports,
// never asserts" contract.
func TestCheckDetectsCorruptedHeader(t *testing.T) {
	a := newTestAllocator(t, 1<<16)

	p, err := a.Malloc(40)
	if err != nil {
		t.Fatal(err)
	}
	addr := addrOf(p)

	// Corrupt: flip the allocated bit on a block that's still live,
	// simulating a stray out-of-bounds write.
	b := blockAt(addr)
	bad := b.header() &^ flagAlloc
	b.setHeader(bad)

	ds := a.Check(99)
	if len(ds) == 0 {
		t.Fatal("Check did not report the corrupted header")
	}
	for _, d := range ds {
		if d.Line != 99 {
			t.Fatalf("diagnostic line = %d, want 99", d.Line)
		}
	}

	// Restore so t.Cleanup's Close doesn't trip over it.
	b.setHeader(bad | flagAlloc)
}
