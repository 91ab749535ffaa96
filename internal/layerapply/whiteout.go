package layerapply

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

const (
	whiteoutPrefix = ".wh."
	whiteoutOpaque = ".wh..wh..opq"
)

// whiteoutKind classifies a tar entry's base name.
type whiteoutKind int

const (
	notWhiteout whiteoutKind = iota
	opaqueWhiteout
	fileWhiteout
)

func classifyWhiteout(base string) whiteoutKind {
	switch {
	case base == whiteoutOpaque:
		return opaqueWhiteout
	case strings.HasPrefix(base, whiteoutPrefix):
		return fileWhiteout
	default:
		return notWhiteout
	}
}

// resolveUnder joins rel onto root after cleaning it, and rejects any
// result that would escape root. Pass two relies on the same check for
// path-traversal protection.
func resolveUnder(root, rel string) (string, error) {
	joined := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: entry %q escapes unpack root", ocierrors.ErrLayerInvalid, rel)
	}
	return joined, nil
}

// applyOpaqueWhiteout removes all contents of the parent directory named
// by entryPath (relative to root), leaving the directory itself in place.
func applyOpaqueWhiteout(root, entryPath string) error {
	parent := filepath.Dir(entryPath)
	dir, err := resolveUnder(root, parent)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: opaque whiteout parent %q does not exist", ocierrors.ErrLayerInvalid, parent)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if err := os.RemoveAll(p); err != nil {
				return err
			}
		} else if err := os.Remove(p); err != nil {
			return err
		}
	}
	return nil
}

// applyFileWhiteout removes the sibling file named by stripping the
// ".wh." prefix from entryPath's base name.
func applyFileWhiteout(root, entryPath string) error {
	dir := filepath.Dir(entryPath)
	base := filepath.Base(entryPath)
	target := filepath.Join(dir, strings.TrimPrefix(base, whiteoutPrefix))

	path, err := resolveUnder(root, target)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(path); err != nil {
		return fmt.Errorf("%w: whiteout target %q does not exist", ocierrors.ErrLayerInvalid, target)
	}
	return os.RemoveAll(path)
}
