// Package library holds the filesystem helpers behind libraries: creating
// the scoped WORK directory (spec.md §5) and mapping a member name to its
// file path. Libref resolution and creation are methods of
// env.Environment.
package library

import (
	"os"
	"path/filepath"
	"strings"
)

// NewWorkDir creates a process-scoped temporary directory for the WORK
// library and returns a cleanup function that removes it. The `sdpl run`
// command defers cleanup, so it runs on normal, error, and cancellation
// returns (spec.md §5).
func NewWorkDir() (dir string, cleanup func(), err error) {
	dir, err = os.MkdirTemp("", "sdpl-work-*")
	if err != nil {
		return "", nil, err
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

// MemberPath returns the conventional on-disk path for a library member:
// <libdir>/<member>.tdf, with the member name lowercased (spec.md §6).
func MemberPath(libDir, member string) string {
	return filepath.Join(libDir, strings.ToLower(member)+".tdf")
}
