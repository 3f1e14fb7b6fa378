// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2024 The Segheap Authors.

package segheap

import (
	"errors"
	"os"
	"reflect"
	"syscall"
	"unsafe"
)

// mmapRegion on Windows: CreateFileMapping backed by the system paging file,
// mapped once at maxRegion size via MapViewOfFile. Windows has no direct
// mprotect-style "reserve then grow" primitive exposed through the plain
// syscall package the way region_unix.go's mprotect does, so the whole range
// is mapped up front; Extend only advances the logical used/High()
// boundary segheap itself enforces. Physical working-set growth still
// tracks the pages actually touched, so this costs no more RAM in practice
// than the unix path costs via mprotect.
type mmapRegion struct {
	mem  []byte
	used int
}

var handleMap = map[uintptr]syscall.Handle{}

func newRegion(maxRegion int) (*mmapRegion, error) {
	flProtect := uint32(syscall.PAGE_READWRITE)
	dwDesiredAccess := uint32(syscall.FILE_MAP_WRITE)

	maxSizeHigh := uint32(int64(maxRegion) >> 32)
	maxSizeLow := uint32(int64(maxRegion) & 0xFFFFFFFF)
	h, errno := syscall.CreateFileMapping(syscall.Handle(^uintptr(0)), nil, flProtect, maxSizeHigh, maxSizeLow, nil)
	if h == 0 {
		return nil, os.NewSyscallError("CreateFileMapping", errno)
	}

	addr, errno := syscall.MapViewOfFile(h, dwDesiredAccess, 0, 0, uintptr(maxRegion))
	if addr == 0 {
		return nil, os.NewSyscallError("MapViewOfFile", errno)
	}

	if addr&uintptr(osPageMask) != 0 {
		panic("segheap: internal error: misaligned mmap reservation")
	}

	handleMap[addr] = h
	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = addr
	sh.Len = maxRegion
	sh.Cap = maxRegion
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

	base := r.Low() + uintptr(r.used)
	r.used = newUsed
	return base, nil
}

func (r *mmapRegion) Close() error {
	if r.mem == nil {
		return nil
	}

	addr := uintptr(unsafe.Pointer(&r.mem[0]))
	r.mem = nil
	r.used = 0
	if err := syscall.UnmapViewOfFile(addr); err != nil {
		return err
	}

	handle, ok := handleMap[addr]
	if !ok {
		return errors.New("segheap: unknown region base address")
	}
	delete(handleMap, addr)
	e := syscall.CloseHandle(handle)
	return os.NewSyscallError("CloseHandle", e)
}
