// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import (
	"reflect"
	"unsafe"
)

// bytesAt builds a []byte header over n bytes starting at addr, the same
// reflect.SliceHeader construction memory.go's Malloc/UnsafeCalloc use
// (memory.go:269-273, 284-288) to hand callers a slice view over raw,
// non-Go-allocated memory.
func bytesAt(addr uintptr, n int) []byte {
	if n == 0 {
		return nil
	}

	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = addr
	sh.Len = n
	sh.Cap = n
	return b
}

// copyBytes copies n bytes from src to dst, both raw addresses into the
// allocator's region.
func copyBytes(dst, src uintptr, n int) {
	if n <= 0 {
		return
	}
	copy(bytesAt(dst, n), bytesAt(src, n))
}

// zeroBytes zeroes n bytes starting at addr.
func zeroBytes(addr uintptr, n int) {
	if n <= 0 {
		return
	}
	b := bytesAt(addr, n)
	for i := range b {
		b[i] = 0
	}
}
