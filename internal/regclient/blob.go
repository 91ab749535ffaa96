package regclient

import (
	"context"
	"io"
	"strconv"

	"github.com/islet-oci/imagereg/internal/ociref"
)

const blobAccept = "application/vnd.oci.image.layer.v1.tar, application/vnd.oci.image.layer.v1.tar+gzip, " +
	"application/vnd.oci.image.layer.v1.tar+zstd, application/vnd.oci.image.config.v1+json"

// BlobReader streams a blob response body. The digest it exposes is the
// announced one (when present); the caller is responsible for verifying
// it against the bytes actually read, after draining to EOF. The digest
// check over a streaming body cannot happen before the caller has read
// everything.
type BlobReader struct {
	io.ReadCloser
	Length    int64
	MediaType string
	Digest    string
}

// GetBlobReader fetches a config or layer blob by digest, returning a
// streaming reader. The caller must call Close.
func (c *Client) GetBlobReader(ctx context.Context, app string, d ociref.Digest) (*BlobReader, error) {
	u, err := c.buildURL(app, "blobs", d.String())
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, u, blobAccept)
	if err != nil {
		return nil, err
	}

	var length int64 = -1
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			length = n
		}
	}

	return &BlobReader{
		ReadCloser: resp.Body,
		Length:     length,
		MediaType:  resp.Header.Get("Content-Type"),
		Digest:     resp.Header.Get("Docker-Content-Digest"),
	}, nil
}
