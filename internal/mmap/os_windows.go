//go:build windows

package mmap

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	// MEM_COMMIT is demand-paged: pages are backed by physical memory only
	// when first touched.
	addr, err := windows.VirtualAlloc(0, uintptr(size),
		windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil, nil, err
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size) //nolint:gosec // region returned by VirtualAlloc

	return data, func([]byte) error {
		return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
	}, nil
}
