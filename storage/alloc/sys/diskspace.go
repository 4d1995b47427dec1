package sys

import (
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// CheckFreeSpace reports whether the filesystem backing path has at least
// wantBytes free. Failure to stat the filesystem is not fatal to the caller;
// it returns (true, err) so a reservation attempt is never blocked on a
// diagnostic that itself failed.
func CheckFreeSpace(path string, wantBytes int64) (ok bool, err error) {
	dir := filepath.Dir(path)
	usage, err := disk.Usage(dir)
	if err != nil {
		return true, err
	}
	return usage.Free >= uint64(wantBytes), nil
}
