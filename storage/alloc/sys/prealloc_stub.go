//go:build !linux

package sys

// Preallocate is a no-op on platforms without a fallocate-style syscall
// wired up; callers fall back to a plain Truncate.
func Preallocate(f FileHandle, size int64) error {
	return ErrPreallocNotSupported
}
