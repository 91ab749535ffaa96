package regstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/islet-oci/imagereg/internal/ociref"
)

// buildFixtureApp writes a minimal one-manifest, one-layer, one-config OCI
// layout under root/appName and returns the manifest digest.
func buildFixtureApp(t *testing.T, root, appName string) ociref.Digest {
	t.Helper()

	appDir := filepath.Join(root, appName)
	mustMkdir(t, filepath.Join(appDir, "blobs", "sha256"))

	configBytes := []byte(`{"architecture":"amd64","os":"linux","rootfs":{"type":"layers","diff_ids":[]}}`)
	configDigest := writeBlob(t, appDir, configBytes)

	layerBytes := []byte("not a real tar, just content-addressed bytes")
	layerDigest := writeBlob(t, appDir, layerBytes)

	manifest := ocispec.Manifest{
		Versioned: ocispecVersioned(),
		MediaType: string(ociref.MediaTypeImageManifest),
		Config: ocispec.Descriptor{
			MediaType: string(ociref.MediaTypeImageConfig),
			Digest:    toOCIDigest(configDigest),
			Size:      int64(len(configBytes)),
		},
		Layers: []ocispec.Descriptor{
			{
				MediaType: string(ociref.MediaTypeImageLayer),
				Digest:    toOCIDigest(layerDigest),
				Size:      int64(len(layerBytes)),
			},
		},
	}
	manifestBytes := mustMarshal(t, manifest)
	manifestDigest := writeBlob(t, appDir, manifestBytes)

	idx := ocispec.Index{
		Versioned: ocispecVersioned(),
		MediaType: string(ociref.MediaTypeImageIndex),
		Manifests: []ocispec.Descriptor{
			{
				MediaType: string(ociref.MediaTypeImageManifest),
				Digest:    toOCIDigest(manifestDigest),
				Size:      int64(len(manifestBytes)),
				Annotations: map[string]string{
					ocispec.AnnotationRefName: "latest",
				},
			},
		},
	}
	writeJSON(t, filepath.Join(appDir, "index.json"), idx)

	writeJSON(t, filepath.Join(appDir, "oci-layout"), ocispec.ImageLayout{Version: "1.0.0"})

	return manifestDigest
}

func TestRegistryImportAndLookup(t *testing.T) {
	root := t.TempDir()
	manifestDigest := buildFixtureApp(t, root, "com.example.app")

	reg, err := Import(root)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	tags, ok := reg.GetTags("com.example.app")
	if !ok || len(tags) != 1 || tags[0] != "latest" {
		t.Fatalf("unexpected tags: %v ok=%v", tags, ok)
	}

	ref, err := ociref.ParseReference("latest")
	if err != nil {
		t.Fatalf("parse reference: %v", err)
	}
	payload, ok, err := reg.GetManifest("com.example.app", ref)
	if err != nil || !ok {
		t.Fatalf("get manifest by tag: ok=%v err=%v", ok, err)
	}
	payload.Close()
	if payload.Digest.String() != manifestDigest.String() {
		t.Fatalf("tag resolved to wrong digest: got %s want %s", payload.Digest, manifestDigest)
	}

	digestRef, err := ociref.ParseReference(manifestDigest.String())
	if err != nil {
		t.Fatalf("parse digest reference: %v", err)
	}
	payload2, ok, err := reg.GetManifest("com.example.app", digestRef)
	if err != nil || !ok {
		t.Fatalf("get manifest by digest: ok=%v err=%v", ok, err)
	}
	payload2.Close()
}

func TestRegistryRejectsCorruptBlob(t *testing.T) {
	root := t.TempDir()
	buildFixtureApp(t, root, "com.example.app")

	// Overwrite whichever blob file sorts first (config, layer or manifest)
	// with shorter content, so it no longer matches its descriptor's size.
	blobsDir := filepath.Join(root, "com.example.app", "blobs", "sha256")
	entries, err := os.ReadDir(blobsDir)
	if err != nil {
		t.Fatalf("read blobs dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected at least one blob")
	}
	corruptPath := filepath.Join(blobsDir, entries[0].Name())
	if err := os.WriteFile(corruptPath, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("corrupt blob: %v", err)
	}

	reg, err := Import(root)
	if err != nil {
		t.Fatalf("import should not fail for the whole registry: %v", err)
	}
	if _, ok := reg.GetTags("com.example.app"); ok {
		t.Fatalf("expected corrupted application to be rejected, not registered")
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func writeBlob(t *testing.T, appDir string, content []byte) ociref.Digest {
	t.Helper()
	d, err := ociref.FromBytes(ociref.SHA256, content)
	if err != nil {
		t.Fatalf("hash content: %v", err)
	}
	path := filepath.Join(appDir, "blobs", d.Path())
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	return d
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	b := mustMarshal(t, v)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func ocispecVersioned() specs.Versioned {
	return specs.Versioned{SchemaVersion: 2}
}

func toOCIDigest(d ociref.Digest) digest.Digest {
	return digest.Digest(d.String())
}
