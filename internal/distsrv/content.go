package distsrv

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/islet-oci/imagereg/internal/regstore"
)

// rangePattern matches exactly the one range form this server accepts:
// "bytes=<skip>-". Any other shape (multi-range, explicit end, suffix) is
// rejected with 416.
var rangePattern = regexp.MustCompile(`^bytes=(\d+)-$`)

// servePayload writes the mandatory headers and the (possibly
// range-restricted) body for a successfully resolved Payload. Headers are
// always finalized before any body bytes are written, so
// Docker-Content-Digest is present even on range responses and on HEAD.
func servePayload(w http.ResponseWriter, r *http.Request, p *regstore.Payload) {
	defer p.Close()

	w.Header().Set("Content-Type", string(p.MediaType))
	w.Header().Set("Docker-Content-Digest", p.Digest.String())

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(p.Size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = io.Copy(w, p.File)
		}
		return
	}

	m := rangePattern.FindStringSubmatch(rangeHeader)
	if m == nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", p.Size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	skip, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || skip >= p.Size {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", p.Size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := p.File.Seek(skip, io.SeekStart); err != nil {
		http.Error(w, "seek failure", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", skip, p.Size-1, p.Size))
	w.Header().Set("Content-Length", strconv.FormatInt(p.Size-skip, 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodGet {
		_, _ = io.Copy(w, p.File)
	}
}
