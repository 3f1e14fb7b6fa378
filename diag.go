// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import "fmt"

// Diagnostic is one reported invariant violation or informational dump line
// from Check. The checker reports, it never panics or asserts — spec.md
// §4.9: "the source philosophy is to print diagnostics with the source-line
// number passed in and continue, so callers can batch-report."
type Diagnostic struct {
	// Line is the caller-supplied line hint passed to Check, surfaced
	// verbatim so a trace driver can correlate a diagnostic back to the
	// operation that triggered it.
	Line int
	// Invariant names which spec.md §3 invariant (1-9) this diagnostic
	// concerns, or 0 for an informational view-heap/view-free-list dump
	// line and for a failed epilogue-sentinel check.
	Invariant int
	// Addr is the address of the offending block, if any.
	Addr uintptr
	// Message is a human-readable description.
	Message string
}

func (d Diagnostic) String() string {
	if d.Invariant == 0 {
		return fmt.Sprintf("segheap: line %d: %s", d.Line, d.Message)
	}
	return fmt.Sprintf("segheap: line %d: invariant %d violated at %#x: %s", d.Line, d.Invariant, d.Addr, d.Message)
}

func diag(line, invariant int, addr uintptr, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Line: line, Invariant: invariant, Addr: addr, Message: fmt.Sprintf(format, args...)}
}
