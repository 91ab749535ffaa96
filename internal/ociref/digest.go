// Package ociref implements the digest, tag and reference grammar used
// throughout the registry store, the distribution surface, the client and
// the signer.
package ociref

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"regexp"

	"github.com/opencontainers/go-digest"

	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// Algorithm is one of the two hash algorithms this registry understands on
// disk and over the wire.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

const (
	sha256HexLen = 64
	sha512HexLen = 128
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]+$`)

// Digest is the pair (algo, hex) described in the data model: canonical
// string form is "algo:hex", canonical path form is "algo/hex".
type Digest struct {
	algo Algorithm
	hex  string
}

// ParseDigest parses s as "algo:hex", validating the algorithm and the hex
// length/charset for that algorithm. This is the "checked" construction
// path; the resulting Digest is guaranteed legal.
func ParseDigest(s string) (Digest, error) {
	d, err := digest.Parse(s)
	if err != nil {
		return Digest{}, fmt.Errorf("%w: %s", ocierrors.ErrInvalidDigest, s)
	}
	algo := Algorithm(d.Algorithm().String())
	hexPart := d.Encoded()

	if err := validate(algo, hexPart); err != nil {
		return Digest{}, err
	}

	return Digest{algo: algo, hex: hexPart}, nil
}

// NewDigestUnchecked builds a Digest from an algorithm directory name and a
// hex file name observed on disk, without validating either. It exists
// solely for probing files during orphan detection; using it for
// verification is a programming error.
func NewDigestUnchecked(algo, hexPart string) Digest {
	return Digest{algo: Algorithm(algo), hex: hexPart}
}

func validate(algo Algorithm, hexPart string) error {
	var wantLen int
	switch algo {
	case SHA256:
		wantLen = sha256HexLen
	case SHA512:
		wantLen = sha512HexLen
	default:
		return fmt.Errorf("%w: unsupported algorithm %q", ocierrors.ErrInvalidDigest, algo)
	}
	if len(hexPart) != wantLen || !hexPattern.MatchString(hexPart) {
		return fmt.Errorf("%w: malformed hex for %s", ocierrors.ErrInvalidDigest, algo)
	}
	return nil
}

// Algorithm returns the digest's hash algorithm.
func (d Digest) Algorithm() Algorithm { return d.algo }

// Hex returns the lowercase hex-encoded hash value.
func (d Digest) Hex() string { return d.hex }

// String renders the canonical "algo:hex" form.
func (d Digest) String() string {
	return string(d.algo) + ":" + d.hex
}

// Path renders the canonical "algo/hex" on-disk path form.
func (d Digest) Path() string {
	return string(d.algo) + "/" + d.hex
}

// Equal compares two digests by their canonical string form.
func (d Digest) Equal(other Digest) bool {
	return d.String() == other.String()
}

func (d Digest) newHash() (hash.Hash, error) {
	return NewHasher(d.algo)
}

// NewHasher returns a fresh hash.Hash for algo, for callers that need to
// stream bytes through a hasher before a Digest exists (e.g. verifying a
// download as it is written to disk).
func NewHasher(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ocierrors.ErrInvalidDigest, algo)
	}
}

// Verify computes the digest's algorithm's hash of b and compares it with
// the declared hex value in constant time.
func Verify(d Digest, b []byte) (bool, error) {
	h, err := d.newHash()
	if err != nil {
		return false, err
	}
	h.Write(b)
	sum := hex.EncodeToString(h.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(sum), []byte(d.hex)) == 1, nil
}

// FromBytes computes the digest of b under the given algorithm.
func FromBytes(algo Algorithm, b []byte) (Digest, error) {
	d := Digest{algo: algo}
	h, err := d.newHash()
	if err != nil {
		return Digest{}, err
	}
	h.Write(b)
	d.hex = hex.EncodeToString(h.Sum(nil))
	return d, nil
}
