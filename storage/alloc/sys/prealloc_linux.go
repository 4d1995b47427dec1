//go:build linux

package sys

import (
	"errors"
	"strings"

	"golang.org/x/sys/unix"
)

// Preallocate attempts to grow the file's allocated block count to size
// without changing the visible file size, using fallocate(FALLOC_FL_KEEP_SIZE)
// where the underlying filesystem supports it.
func Preallocate(f FileHandle, size int64) error {
	if size <= 0 {
		return nil
	}
	fd := int(f.Fd())

	if path := f.Name(); path != "" && strings.HasPrefix(path, "/mnt/") {
		return ErrPreallocNotSupported
	}

	var stat unix.Stat_t
	var dev uint64
	if err := unix.Fstat(fd, &stat); err == nil {
		dev = uint64(stat.Dev)
		if allow, ok := preallocCacheLoad(dev); ok {
			if !allow {
				return ErrPreallocNotSupported
			}
			return fallocate(fd, size)
		}
	}

	var st unix.Statfs_t
	if err := unix.Fstatfs(fd, &st); err != nil {
		return ErrPreallocNotSupported
	}
	switch st.Type {
	case 0xEF53, // EXT2/3/4
		0x58465342, // XFS
		0x9123683E, // BTRFS
		0x01021994, // TMPFS
		0xF2F52010: // F2FS
		// allowed
	default:
		if dev != 0 {
			preallocCacheStore(dev, false)
		}
		return ErrPreallocNotSupported
	}

	err := fallocate(fd, size)
	if dev != 0 {
		preallocCacheStore(dev, err == nil)
	}
	return err
}

func fallocate(fd int, size int64) error {
	if err := unix.Fallocate(fd, unix.FALLOC_FL_KEEP_SIZE, 0, size); err == nil {
		return nil
	} else if !isUnsupported(err) {
		return err
	}
	if err := unix.Fallocate(fd, 0, 0, size); err == nil {
		return nil
	} else if isUnsupported(err) {
		return ErrPreallocNotSupported
	} else {
		return err
	}
}

func isUnsupported(err error) bool {
	return errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EINVAL) ||
		errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOTTY)
}
