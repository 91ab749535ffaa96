package regstore

import (
	"io"
	"os"

	"github.com/islet-oci/imagereg/internal/ociref"
)

// Content is a materialized pointer to a file on disk: a descriptor
// resolved against the application's blobs directory.
type Content struct {
	Path      string
	Size      int64
	Digest    ociref.Digest
	MediaType ociref.MediaType
}

// Payload bundles an opened file handle with the metadata the distribution
// surface needs to answer a request. Opening is deferred until the request
// is actually served, and Size is revalidated at open time.
type Payload struct {
	File      *os.File
	Size      int64
	Digest    ociref.Digest
	MediaType ociref.MediaType
}

// Close releases the underlying file handle.
func (p *Payload) Close() error {
	if p.File == nil {
		return nil
	}
	return p.File.Close()
}

// open resolves a Content record to a Payload, reopening the file and
// revalidating its size against current metadata. A file that shrank or
// grew since load time (stale on-disk state) yields (nil, false).
func open(c Content) (*Payload, bool, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, err
	}
	if fi.Size() != c.Size {
		f.Close()
		return nil, false, nil
	}
	return &Payload{File: f, Size: c.Size, Digest: c.Digest, MediaType: c.MediaType}, true, nil
}

var _ io.Closer = (*Payload)(nil)
