// Package layerapply implements the two-pass tar layer unpacker. Pass one
// streams the decoded tar through a hasher while
// applying whiteouts and verifies the result against the layer's diff_id;
// pass two re-decodes the same layer and copies every non-whiteout entry
// into the destination root.
package layerapply

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// openDecoded opens path and wraps it with the decoder matching
// mediaType, returning an io.ReadCloser whose Close releases both the
// decoder (if any) and the underlying file.
func openDecoded(path string, mediaType ociref.MediaType) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layer: %w", err)
	}

	switch mediaType {
	case ociref.MediaTypeImageLayer:
		return f, nil

	case ociref.MediaTypeImageLayerGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: gzip header: %v", ocierrors.ErrLayerInvalid, err)
		}
		return &gzipReadCloser{gz: gz, f: f}, nil

	case ociref.MediaTypeImageLayerZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: zstd header: %v", ocierrors.ErrLayerInvalid, err)
		}
		return &zstdReadCloser{zr: zr, f: f}, nil

	default:
		f.Close()
		return nil, fmt.Errorf("%w: unsupported layer media type %q", ocierrors.ErrLayerInvalid, mediaType)
	}
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	err := g.gz.Close()
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}

type zstdReadCloser struct {
	zr *zstd.Decoder
	f  *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.zr.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.zr.Close()
	return z.f.Close()
}
