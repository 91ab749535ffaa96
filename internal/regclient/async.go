package regclient

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/islet-oci/imagereg/internal/ociref"
)

// AsyncClient wraps a Client to offer a cooperative, concurrent-fan-out
// shape with identical method semantics to the blocking one. The two
// share every parsing and verification path and diverge only at the I/O
// boundary: concurrent goroutines coordinated by an errgroup instead of
// one call per goroutine the caller manages itself.
type AsyncClient struct {
	c *Client
}

// NewAsyncClient wraps an existing blocking Client; both are safe to use
// from multiple goroutines concurrently, since they share one http.Client.
func NewAsyncClient(c *Client) *AsyncClient {
	return &AsyncClient{c: c}
}

// GetManifest mirrors Client.GetManifest.
func (a *AsyncClient) GetManifest(ctx context.Context, app string, ref ociref.Reference) (*ManifestResult, error) {
	return a.c.GetManifest(ctx, app, ref)
}

// GetBlobsConcurrently fetches multiple blobs in parallel, returning
// results in the same order as digests. If any fetch fails, the first
// error is returned and the rest are canceled via ctx.
func (a *AsyncClient) GetBlobsConcurrently(ctx context.Context, app string, digests []ociref.Digest) ([]*BlobReader, error) {
	results := make([]*BlobReader, len(digests))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range digests {
		i, d := i, d
		g.Go(func() error {
			br, err := a.c.GetBlobReader(gctx, app, d)
			if err != nil {
				return err
			}
			results[i] = br
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, r := range results {
			if r != nil {
				r.Close()
			}
		}
		return nil, err
	}

	return results, nil
}

// ListTags mirrors Client.ListTags.
func (a *AsyncClient) ListTags(ctx context.Context, app string, n *int, last string) (*TagList, error) {
	return a.c.ListTags(ctx, app, n, last)
}
