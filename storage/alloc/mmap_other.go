//go:build !linux && !darwin

package alloc

import (
	"fmt"
	"os"
)

// mmapRegion falls back to a buffered read of the whole file region on
// platforms without a wired mmap syscall path. It is not a shared mapping:
// writers must go through the external writer component's own I/O, exactly
// as on the mmap-backed platforms, so this fallback's weaker sharing
// semantics do not change the allocator's contract.
type mmapRegion struct {
	data     []byte
	readOnly bool
}

func mmapFile(fd uintptr, size int64, readOnly bool) (*mmapRegion, error) {
	f := os.NewFile(fd, "")
	data := make([]byte, size)
	if size > 0 {
		if _, err := f.ReadAt(data, 0); err != nil {
			return nil, fmt.Errorf("alloc: reading file region failed: %w", err)
		}
	}
	return &mmapRegion{data: data, readOnly: readOnly}, nil
}

func (m *mmapRegion) remap(fd uintptr, newSize int64) (moved bool, err error) {
	fresh, err := mmapFile(fd, newSize, m.readOnly)
	if err != nil {
		return false, err
	}
	*m = *fresh
	return true, nil
}

func (m *mmapRegion) unmap() error {
	m.data = nil
	return nil
}
