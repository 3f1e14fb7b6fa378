// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2024 The Segheap Authors.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

package segheap

import (
	"syscall"
	"unsafe"
)

// mmapRegion implements RegionProvider by reserving maxRegion bytes of
// address space with mmap(PROT_NONE) once, then growing the usable prefix
// with mprotect as Extend is called. Address space is cheap; only the
// touched prefix is backed by real pages, so an idle large allocator costs
// virtual address space rather than RAM — the same "ask the OS once, track
// usage ourselves" split memory.go uses per mmapped page, inverted to a
// single growing region instead of many fixed-size ones.
type mmapRegion struct {
	mem  []byte
	used int
}

func newRegion(maxRegion int) (*mmapRegion, error) {
	flags := syscall.MAP_PRIVATE | syscall.MAP_ANON
	b, err := syscall.Mmap(-1, 0, maxRegion, syscall.PROT_NONE, flags)
	if err != nil {
		return nil, err
	}

	if uintptr(unsafe.Pointer(&b[0]))&uintptr(osPageMask) != 0 {
		panic("segheap: internal error: misaligned mmap reservation")
	}

	return &mmapRegion{mem: b}, nil
}

func (r *mmapRegion) Low() uintptr { return uintptr(unsafe.Pointer(&r.mem[0])) }

func (r *mmapRegion) High() uintptr { return r.Low() + uintptr(r.used) }

func (r *mmapRegion) Extend(n int) (uintptr, error) {
	if n < 0 {
		panic("segheap: negative extend")
	}

	newUsed := r.used + n
	if newUsed > len(r.mem) {
		return 0, &ErrRegionExhausted{Requested: n, Err: syscall.ENOMEM}
	}

	if err := syscall.Mprotect(r.mem[:newUsed], syscall.PROT_READ|syscall.PROT_WRITE); err != nil {
		return 0, &ErrRegionExhausted{Requested: n, Err: err}
	}

	base := r.Low() + uintptr(r.used)
	r.used = newUsed
	return base, nil
}

func (r *mmapRegion) Close() error {
	if r.mem == nil {
		return nil
	}

	mem := r.mem
	r.mem = nil
	r.used = 0
	_, _, errno := syscall.Syscall(syscall.SYS_MUNMAP, uintptr(unsafe.Pointer(&mem[0])), uintptr(len(mem)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}
