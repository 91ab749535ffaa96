package layerapply

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/islet-oci/imagereg/internal/hashreader"
	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// Unpack applies a single layer to root:
//
//  1. Pass one streams the decoded tar through a hasher, applying
//     whiteouts as it goes, then verifies the hash against diffID.
//  2. Pass two re-decodes the same layer and copies every non-whiteout
//     entry into root, preserving permissions and xattrs.
//
// The layer is re-opened and re-decoded between passes rather than
// buffered, since layers may be arbitrarily large.
func Unpack(root, layerPath string, mediaType ociref.MediaType, diffID ociref.Digest) error {
	if err := runWhiteoutPass(root, layerPath, mediaType, diffID); err != nil {
		return err
	}
	return runCopyPass(root, layerPath, mediaType)
}

func runWhiteoutPass(root, layerPath string, mediaType ociref.MediaType, diffID ociref.Digest) error {
	decoded, err := openDecoded(layerPath, mediaType)
	if err != nil {
		return err
	}
	defer decoded.Close()

	hr, err := hashreader.New(diffID.Algorithm(), decoded)
	if err != nil {
		return err
	}

	tr := tar.NewReader(hr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: reading tar entries: %v", ocierrors.ErrLayerInvalid, err)
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		entryPath := filepath.Clean(hdr.Name)
		base := filepath.Base(entryPath)

		switch classifyWhiteout(base) {
		case opaqueWhiteout:
			if err := applyOpaqueWhiteout(root, entryPath); err != nil {
				return err
			}
		case fileWhiteout:
			if err := applyFileWhiteout(root, entryPath); err != nil {
				return err
			}
		}
	}

	// Drain any bytes the tar reader itself never consumed (trailing
	// padding) so the hasher has seen the whole stream.
	if err := hashreader.Drain(hr); err != nil {
		return fmt.Errorf("%w: draining layer: %v", ocierrors.ErrLayerInvalid, err)
	}

	got := hr.Finalize()
	if !strings.EqualFold(got, diffID.Hex()) {
		return fmt.Errorf("%w: expected %s, got %s", ocierrors.ErrInvalidDiffID, diffID.Hex(), got)
	}
	return nil
}

func runCopyPass(root string, layerPath string, mediaType ociref.MediaType) error {
	decoded, err := openDecoded(layerPath, mediaType)
	if err != nil {
		return err
	}
	defer decoded.Close()

	tr := tar.NewReader(decoded)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: reading tar entries: %v", ocierrors.ErrLayerInvalid, err)
		}

		entryPath := filepath.Clean(hdr.Name)
		base := filepath.Base(entryPath)
		if hdr.Typeflag == tar.TypeReg && classifyWhiteout(base) != notWhiteout {
			continue
		}

		dest, err := resolveUnder(root, entryPath)
		if err != nil {
			return err
		}

		if err := extractEntry(tr, hdr, root, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, root, dest string) error {
	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(dest, os.FileMode(hdr.Mode)&os.ModePerm); err != nil {
			return err
		}
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&os.ModePerm)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return fmt.Errorf("%w: writing %q: %v", ocierrors.ErrLayerInvalid, hdr.Name, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		_ = os.Remove(dest)
		if err := os.Symlink(hdr.Linkname, dest); err != nil {
			return err
		}
	case tar.TypeLink:
		// Hard link names are relative to the layer root, not the entry's
		// own directory.
		linkTarget, err := resolveUnder(root, filepath.Clean(hdr.Linkname))
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		_ = os.Remove(dest)
		if err := os.Link(linkTarget, dest); err != nil {
			return err
		}
	default:
		// Character/block devices and FIFOs are not expected in
		// application image layers; skip rather than fail so a layer
		// carrying one does not need root privileges to unpack.
		return nil
	}

	if hdr.Typeflag != tar.TypeSymlink {
		if err := os.Chmod(dest, os.FileMode(hdr.Mode)&os.ModePerm); err != nil {
			return err
		}
	}
	applyXattrs(dest, hdr.PAXRecords)

	return nil
}

// paxXattrPrefix marks extended-attribute records in a PAX header.
const paxXattrPrefix = "SCHILY.xattr."

// applyXattrs restores any extended attributes recorded on the tar entry.
// Failures are tolerated (xattrs commonly require filesystem support this
// unpack root may not have) rather than aborting the whole layer.
func applyXattrs(path string, paxRecords map[string]string) {
	for k, v := range paxRecords {
		if !strings.HasPrefix(k, paxXattrPrefix) {
			continue
		}
		_ = unix.Lsetxattr(path, strings.TrimPrefix(k, paxXattrPrefix), []byte(v), 0)
	}
}
