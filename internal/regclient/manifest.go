package regclient

import (
	"context"
	"encoding/json"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/pkg/obslog"
	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

const manifestAccept = "application/vnd.oci.image.manifest.v1+json, application/vnd.oci.image.index.v1+json"

// ManifestResult bundles the parsed manifest with its announced digest.
type ManifestResult struct {
	Manifest ocispec.Manifest
	Digest   ociref.Digest
}

// GetManifest fetches and verifies an application's manifest or index.
func (c *Client) GetManifest(ctx context.Context, app string, ref ociref.Reference) (*ManifestResult, error) {
	u, err := c.buildURL(app, "manifests", ref.String())
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, u, manifestAccept)
	if err != nil {
		return nil, err
	}

	b, err := verifyJSONBody(resp)
	if err != nil {
		return nil, err
	}

	var m ocispec.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ocierrors.ErrManifestFormat, err)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && m.MediaType != "" && ct != m.MediaType {
		obslog.Warn("manifest Content-Type %q does not match body mediaType %q for %s/%s", ct, m.MediaType, app, ref.String())
	}

	d, err := ociref.FromBytes(ociref.SHA256, b)
	if err != nil {
		return nil, err
	}
	if dgst := resp.Header.Get("Docker-Content-Digest"); dgst != "" {
		if parsed, err := ociref.ParseDigest(dgst); err == nil {
			d = parsed
		}
	}

	return &ManifestResult{Manifest: m, Digest: d}, nil
}
