// Package orchestrator implements the client-side image pull-and-unpack
// pipeline. It composes the distribution client and the layer unpacker,
// and owns the temporary-file lifecycle for downloaded layers.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/islet-oci/imagereg/internal/layerapply"
	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/internal/regclient"
	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// layerExtension maps a layer media type to the file suffix its temporary
// download is given, purely for operator-visible clarity on disk.
func layerExtension(mt ociref.MediaType) string {
	switch mt {
	case ociref.MediaTypeImageLayerGzip:
		return ".tar.gz"
	case ociref.MediaTypeImageLayerZstd:
		return ".tar.zstd"
	default:
		return ".tar"
	}
}

// PullAndUnpack resolves reference in app, downloads its config and every
// layer in order, and unpacks each layer onto dest. If any layer fails,
// the orchestrator stops immediately, leaving dest in its
// partially-mutated state; the caller controls retry/cleanup.
func PullAndUnpack(ctx context.Context, client *regclient.Client, app string, ref ociref.Reference, dest, tempDir string) error {
	manifestResult, err := client.GetManifest(ctx, app, ref)
	if err != nil {
		return err
	}
	manifest := manifestResult.Manifest

	configDigest, err := ociref.ParseDigest(manifest.Config.Digest.String())
	if err != nil {
		return err
	}

	configBytes, err := downloadAndVerify(ctx, client, app, configDigest)
	if err != nil {
		return err
	}

	var config ocispec.Image
	if err := json.Unmarshal(configBytes, &config); err != nil {
		return fmt.Errorf("%w: parsing image config: %v", ocierrors.ErrManifestFormat, err)
	}

	if len(config.RootFS.DiffIDs) != len(manifest.Layers) {
		return fmt.Errorf("%w: config has %d diff_ids for %d layers", ocierrors.ErrLayerInvalid, len(config.RootFS.DiffIDs), len(manifest.Layers))
	}

	for i, layerDesc := range manifest.Layers {
		layerDigest, err := ociref.ParseDigest(layerDesc.Digest.String())
		if err != nil {
			return err
		}
		mt := ociref.MediaType(layerDesc.MediaType)

		diffID, err := ociref.ParseDigest(config.RootFS.DiffIDs[i].String())
		if err != nil {
			return fmt.Errorf("%w: %v", ocierrors.ErrLayerInvalid, err)
		}

		tempPath, err := downloadLayerToFile(ctx, client, app, layerDigest, mt, tempDir, i)
		if err != nil {
			return err
		}

		if err := layerapply.Unpack(dest, tempPath, mt, diffID); err != nil {
			return err
		}

		if err := os.Remove(tempPath); err != nil {
			return fmt.Errorf("removing temporary layer file: %w", err)
		}
	}

	return nil
}

// downloadAndVerify fetches a blob fully into memory and verifies its
// hash against the declared digest: used for the (small) config blob.
func downloadAndVerify(ctx context.Context, client *regclient.Client, app string, d ociref.Digest) ([]byte, error) {
	br, err := client.GetBlobReader(ctx, app, d)
	if err != nil {
		return nil, err
	}
	defer br.Close()

	b, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ocierrors.ErrConnection, err)
	}

	ok, err := ociref.Verify(d, b)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ocierrors.ErrDigestInvalid
	}
	return b, nil
}

// downloadLayerToFile streams a layer blob to a temporary file and
// verifies its hash against the declared digest once fully written.
func downloadLayerToFile(ctx context.Context, client *regclient.Client, app string, d ociref.Digest, mt ociref.MediaType, tempDir string, index int) (string, error) {
	br, err := client.GetBlobReader(ctx, app, d)
	if err != nil {
		return "", err
	}
	defer br.Close()

	path := filepath.Join(tempDir, fmt.Sprintf("layer_%d%s", index, layerExtension(mt)))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	hr, err := newVerifyingCopy(f, d)
	if err != nil {
		f.Close()
		return "", err
	}
	if _, err := io.Copy(hr, br); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: %v", ocierrors.ErrConnection, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if !hr.verify() {
		return "", ocierrors.ErrDigestInvalid
	}

	return path, nil
}
