package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"mixdown/internal/config"
)

// CheckDirectoryAccess verifies the directory exists (creating it when
// missing) and is writable by the current user.
func CheckDirectoryAccess(name, path string) Result {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid path %q: %v", path, err)}
	}
	if expanded == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("cannot create %s: %v", expanded, err)}
	}
	if err := unix.Access(expanded, unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("not writable: %s", expanded)}
	}
	return Result{Name: name, Passed: true, Detail: expanded}
}

// CheckFreeSpace verifies the filesystem holding path has at least
// minFreeMiB available to an unprivileged writer.
func CheckFreeSpace(name, path string, minFreeMiB int64) Result {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid path %q: %v", path, err)}
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(expanded, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs %s: %v", expanded, err)}
	}
	freeMiB := int64(stat.Bavail) * stat.Bsize / (1 << 20)
	if freeMiB < minFreeMiB {
		return Result{Name: name, Detail: fmt.Sprintf("%d MiB free, need %d MiB", freeMiB, minFreeMiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d MiB free", freeMiB)}
}

// CheckAssetReadable verifies a configured music asset exists and is
// readable.
func CheckAssetReadable(name, path string) Result {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid path %q: %v", path, err)}
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("missing: %s", expanded)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("is a directory: %s", expanded)}
	}
	if err := unix.Access(expanded, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("not readable: %s", expanded)}
	}
	return Result{Name: name, Passed: true, Detail: expanded}
}
