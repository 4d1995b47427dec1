//go:build linux || darwin

package alloc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mmapRegion is the memory-mapped file prefix backing an attached file
// region (spec.md §3 "File region"). Read-only sessions map PROT_READ;
// a session participating in writes (SharedFile/UnsharedFile with a live
// writer) maps PROT_READ|PROT_WRITE so prepare_for_update can rewrite the
// header in place.
type mmapRegion struct {
	data     []byte
	readOnly bool
}

func mmapFile(fd uintptr, size int64, readOnly bool) (*mmapRegion, error) {
	if size == 0 {
		return &mmapRegion{data: nil, readOnly: readOnly}, nil
	}
	prot := unix.PROT_READ
	if !readOnly {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(int(fd), 0, int(size), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("alloc: mmap failed: %w", err)
	}
	return &mmapRegion{data: data, readOnly: readOnly}, nil
}

// remap unmaps and re-maps the region at newSize. Returns whether the base
// address moved (Go slices from a fresh mmap always report "moved" since
// there is no in-place growth guarantee across platforms).
func (m *mmapRegion) remap(fd uintptr, newSize int64) (moved bool, err error) {
	if err := m.unmap(); err != nil {
		return false, err
	}
	fresh, err := mmapFile(fd, newSize, m.readOnly)
	if err != nil {
		return false, err
	}
	*m = *fresh
	return true, nil
}

func (m *mmapRegion) unmap() error {
	if len(m.data) == 0 {
		return nil
	}
	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("alloc: munmap failed: %w", err)
	}
	m.data = nil
	return nil
}
