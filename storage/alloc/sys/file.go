// Package sys isolates the platform-specific file operations the slab
// allocator needs: preallocating disk blocks and reading an advisory
// free-space figure before a big reservation.
package sys

import (
	"io"
	"os"
)

// FileHandle is the subset of *os.File the allocator's file-backed attach
// mode depends on. Kept narrow so tests can substitute an in-memory fake.
type FileHandle interface {
	io.ReaderAt
	io.WriterAt

	Fd() uintptr
	Name() string
	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
}

var _ FileHandle = (*os.File)(nil)
