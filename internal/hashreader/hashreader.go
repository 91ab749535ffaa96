// Package hashreader implements the streaming hash decorator used by the
// layer unpacker's first pass (verifying diff_ids).
package hashreader

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/islet-oci/imagereg/internal/ociref"
)

// HashingReader wraps an io.Reader and feeds every byte actually returned
// to the caller into a running hash. It never double-counts bytes on short
// reads or errors: only what Read hands back to the caller is hashed.
type HashingReader struct {
	r io.Reader
	h hash.Hash
}

// New wraps r with a hasher for the given algorithm.
func New(algo ociref.Algorithm, r io.Reader) (*HashingReader, error) {
	var h hash.Hash
	switch algo {
	case ociref.SHA256:
		h = sha256.New()
	case ociref.SHA512:
		h = sha512.New()
	default:
		return nil, fmt.Errorf("hashreader: unsupported algorithm %q", algo)
	}
	return &HashingReader{r: r, h: h}, nil
}

// Read forwards to the inner reader; on success it updates the hash with
// exactly the bytes produced this call.
func (hr *HashingReader) Read(buf []byte) (int, error) {
	n, err := hr.r.Read(buf)
	if n > 0 {
		hr.h.Write(buf[:n])
	}
	return n, err
}

// Sum returns the hex-encoded hash of everything read so far, without
// resetting internal state.
func (hr *HashingReader) Sum() string {
	return hex.EncodeToString(hr.h.Sum(nil))
}

// Finalize returns the hex-encoded hash and resets the hasher so the same
// HashingReader could, in principle, be reused for a fresh stream.
func (hr *HashingReader) Finalize() string {
	sum := hr.Sum()
	hr.h.Reset()
	return sum
}

// Drain reads r to EOF, discarding bytes, so that any wrapping hasher has
// observed every byte of the stream. Used after a whiteout pass that may
// stop consuming an archive before its natural end.
func Drain(r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}
