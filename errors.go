// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned, possibly wrapped, whenever the region provider
// refuses to extend further. spec.md §7's Exhausted taxonomy entry.
var ErrExhausted = errors.New("segheap: heap exhausted")

// ErrInvalidArgument is returned for calls with a structurally invalid
// argument, e.g. a negative size. It is distinct from the n==0 case, which
// is success (NIL) per spec.md §7, not an error.
var ErrInvalidArgument = errors.New("segheap: invalid argument")

func exhausted(requested int, cause error) error {
	return fmt.Errorf("%w: requested %d bytes: %v", ErrExhausted, requested, cause)
}
