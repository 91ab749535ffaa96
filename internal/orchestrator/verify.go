package orchestrator

import (
	"encoding/hex"
	"hash"
	"io"

	"github.com/islet-oci/imagereg/internal/ociref"
)

// verifyingCopy tees writes to an underlying file while feeding them into
// a running hash, so a streamed-to-disk layer can be digest-checked
// without a second read pass over the file.
type verifyingCopy struct {
	w    io.Writer
	h    hash.Hash
	want ociref.Digest
}

func newVerifyingCopy(w io.Writer, want ociref.Digest) (*verifyingCopy, error) {
	h, err := ociref.NewHasher(want.Algorithm())
	if err != nil {
		return nil, err
	}
	return &verifyingCopy{w: w, h: h, want: want}, nil
}

func (v *verifyingCopy) Write(p []byte) (int, error) {
	n, err := v.w.Write(p)
	if n > 0 {
		v.h.Write(p[:n])
	}
	return n, err
}

func (v *verifyingCopy) verify() bool {
	got := ociref.NewDigestUnchecked(string(v.want.Algorithm()), hex.EncodeToString(v.h.Sum(nil)))
	return got.Equal(v.want)
}
