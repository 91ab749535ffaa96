// Package atomicfile provides write-temp-then-rename file operations.
//
// The registry store, and especially the signer, must never leave a
// manifest or index file half-written: every rewrite in this codebase goes
// through this package.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile writes data to path atomically.
//
// It first writes to a temporary file in the same directory, then renames
// it to the target path. This ensures the file is either fully written or
// not written at all, preventing torn reads by concurrent readers.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("write temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temporary file: %w", err)
	}

	return nil
}

// Rewrite atomically replaces the contents of an existing file, preserving
// its current permission bits. Used by the signer when it pretty-prints a
// manifest or index back over itself.
func Rewrite(path string, data []byte) error {
	perm := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		perm = fi.Mode().Perm()
	}
	return WriteFile(path, data, perm)
}

// Rename moves a file at oldPath to newPath, creating newPath's parent
// directory if needed. Used by the signer to move a blob from its old
// digest path to its new one after a rehash.
func Rename(oldPath, newPath string) error {
	if err := EnsureParentDir(newPath, 0o755); err != nil {
		return err
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}

// EnsureDir ensures that a directory exists, creating it if necessary,
// along with any required parents.
func EnsureDir(path string, perm os.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// EnsureParentDir ensures that the parent directory of the given path exists.
func EnsureParentDir(path string, perm os.FileMode) error {
	return EnsureDir(filepath.Dir(path), perm)
}
