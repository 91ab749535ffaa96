package regclient

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/internal/regstore"
)

// buildFixtureRegistryForClient writes a minimal one-manifest, one-tag,
// one-layer registry on disk and imports it, for exercising the client
// against a real distsrv-backed httptest.Server.
func buildFixtureRegistryForClient(t *testing.T) *regstore.Registry {
	t.Helper()

	root := t.TempDir()
	appDir := filepath.Join(root, "com.example.app")
	if err := os.MkdirAll(filepath.Join(appDir, "blobs", "sha256"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	layerContent := []byte("layer bytes")
	layerDigest := writeFixtureBlob(t, appDir, layerContent)

	configContent := []byte(`{"architecture":"amd64","os":"linux"}`)
	configDigest := writeFixtureBlob(t, appDir, configContent)

	manifest := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: string(ociref.MediaTypeImageManifest),
		Config: ocispec.Descriptor{
			MediaType: string(ociref.MediaTypeImageConfig),
			Digest:    digest.Digest(configDigest.String()),
			Size:      int64(len(configContent)),
		},
		Layers: []ocispec.Descriptor{
			{
				MediaType: string(ociref.MediaTypeImageLayer),
				Digest:    digest.Digest(layerDigest.String()),
				Size:      int64(len(layerContent)),
			},
		},
	}
	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	manifestDigest := writeFixtureBlob(t, appDir, manifestBytes)

	idx := ocispec.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: string(ociref.MediaTypeImageIndex),
		Manifests: []ocispec.Descriptor{
			{
				MediaType: string(ociref.MediaTypeImageManifest),
				Digest:    digest.Digest(manifestDigest.String()),
				Size:      int64(len(manifestBytes)),
				Annotations: map[string]string{
					ocispec.AnnotationRefName: "latest",
				},
			},
		},
	}
	idxBytes, err := json.Marshal(idx)
	if err != nil {
		t.Fatalf("marshal index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(appDir, "index.json"), idxBytes, 0o644); err != nil {
		t.Fatalf("write index.json: %v", err)
	}

	layoutBytes, err := json.Marshal(ocispec.ImageLayout{Version: "1.0.0"})
	if err != nil {
		t.Fatalf("marshal layout: %v", err)
	}
	if err := os.WriteFile(filepath.Join(appDir, "oci-layout"), layoutBytes, 0o644); err != nil {
		t.Fatalf("write oci-layout: %v", err)
	}

	reg, err := regstore.Import(root)
	if err != nil {
		t.Fatalf("import registry: %v", err)
	}
	return reg
}

func writeFixtureBlob(t *testing.T, appDir string, content []byte) ociref.Digest {
	t.Helper()
	d, err := ociref.FromBytes(ociref.SHA256, content)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	path := filepath.Join(appDir, "blobs", d.Path())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	return d
}
