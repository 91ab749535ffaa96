package signer

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

// writeBlob hashes content and writes it to its canonical blobs/ path under
// appDir, returning the digest.
func writeBlob(t *testing.T, appDir string, content []byte) ociref.Digest {
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

func marshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// singleManifestFixture builds registry/app with one manifest (config +
// layer) referenced by the top-level index under tag "latest", returning
// the AppPaths and the manifest's digest.
func singleManifestFixture(t *testing.T) (AppPaths, ociref.Digest) {
	t.Helper()
	root := t.TempDir()
	app := "com.example.app"
	appDir := filepath.Join(root, app)

	configDigest := writeBlob(t, appDir, []byte(`{"architecture":"amd64","os":"linux"}`))
	layerDigest := writeBlob(t, appDir, []byte("layer content"))

	manifest := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: string(ociref.MediaTypeImageManifest),
		Config: ocispec.Descriptor{
			MediaType: string(ociref.MediaTypeImageConfig),
			Digest:    digestOf(configDigest),
			Size:      blobSize(t, appDir, configDigest),
		},
		Layers: []ocispec.Descriptor{
			{
				MediaType: string(ociref.MediaTypeImageLayer),
				Digest:    digestOf(layerDigest),
				Size:      blobSize(t, appDir, layerDigest),
			},
		},
	}
	manifestDigest := writeBlob(t, appDir, marshal(t, manifest))

	idx := ocispec.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: string(ociref.MediaTypeImageIndex),
		Manifests: []ocispec.Descriptor{
			{
				MediaType: string(ociref.MediaTypeImageManifest),
				Digest:    digestOf(manifestDigest),
				Size:      blobSize(t, appDir, manifestDigest),
				Annotations: map[string]string{
					ocispec.AnnotationRefName: "latest",
				},
			},
		},
	}
	paths := AppPaths{Registry: root, App: app}
	if err := os.WriteFile(paths.IndexPath(), marshal(t, idx), 0o644); err != nil {
		t.Fatalf("write index.json: %v", err)
	}

	return paths, manifestDigest
}

func digestOf(d ociref.Digest) digest.Digest {
	return digest.Digest(d.String())
}

func blobSize(t *testing.T, appDir string, d ociref.Digest) int64 {
	t.Helper()
	info, err := os.Stat(filepath.Join(appDir, "blobs", d.Path()))
	if err != nil {
		t.Fatalf("stat blob: %v", err)
	}
	return info.Size()
}

func TestSignConfigAddsAnnotationsAndVerifies(t *testing.T) {
	paths, manifestDigest := singleManifestFixture(t)

	caPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate ca key: %v", err)
	}
	vendorPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate vendor key: %v", err)
	}
	vendorPubSig, err := SignVendorPub(vendorPrv, caPrv)
	if err != nil {
		t.Fatalf("sign vendor pub: %v", err)
	}

	if err := SignConfig(paths, manifestDigest, vendorPrv, vendorPubSig); err != nil {
		t.Fatalf("sign config: %v", err)
	}

	m, err := readManifest(paths.BlobPath(manifestDigest))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	for _, key := range []string{AnnotationSignature, AnnotationVendorPub, AnnotationVendorPubSignature} {
		if m.Annotations[key] == "" {
			t.Fatalf("expected annotation %s to be set", key)
		}
	}

	if err := VerifyImage(paths, mustDigestRef(t, manifestDigest), &caPrv.PublicKey); err != nil {
		t.Fatalf("verify image: %v", err)
	}
}

func mustDigestRef(t *testing.T, d ociref.Digest) ociref.Reference {
	t.Helper()
	ref, err := ociref.ParseReference(d.String())
	if err != nil {
		t.Fatalf("parse reference: %v", err)
	}
	return ref
}

func TestSignImageWithPreMadeEndorsement(t *testing.T) {
	paths, manifestDigest := singleManifestFixture(t)

	caPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate ca key: %v", err)
	}
	vendorPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate vendor key: %v", err)
	}
	vendorPubSig, err := SignVendorPub(vendorPrv, caPrv)
	if err != nil {
		t.Fatalf("sign vendor pub: %v", err)
	}

	ref := mustDigestRef(t, manifestDigest)
	endorsement := Endorsement{VendorPubSignature: vendorPubSig, CAPub: &caPrv.PublicKey}
	if err := SignImage(paths, ref, vendorPrv, endorsement); err != nil {
		t.Fatalf("sign image: %v", err)
	}

	// The manifest's digest changed since it now carries annotations;
	// resolve through the (now-updated) tag to find it.
	latestRef, err := ociref.ParseReference("latest")
	if err != nil {
		t.Fatalf("parse tag: %v", err)
	}
	if err := VerifyImage(paths, latestRef, &caPrv.PublicKey); err != nil {
		t.Fatalf("verify image: %v", err)
	}
}

func TestSignImageWithCAPrv(t *testing.T) {
	paths, manifestDigest := singleManifestFixture(t)

	caPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate ca key: %v", err)
	}
	vendorPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate vendor key: %v", err)
	}

	ref := mustDigestRef(t, manifestDigest)
	endorsement := Endorsement{CAPrv: caPrv}
	if err := SignImage(paths, ref, vendorPrv, endorsement); err != nil {
		t.Fatalf("sign image: %v", err)
	}

	latestRef, err := ociref.ParseReference("latest")
	if err != nil {
		t.Fatalf("parse tag: %v", err)
	}
	if err := VerifyImage(paths, latestRef, &caPrv.PublicKey); err != nil {
		t.Fatalf("verify image: %v", err)
	}
}

func TestVerifyImageRejectsWrongCA(t *testing.T) {
	paths, manifestDigest := singleManifestFixture(t)

	caPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate ca key: %v", err)
	}
	wrongCAPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate wrong ca key: %v", err)
	}
	vendorPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate vendor key: %v", err)
	}

	ref := mustDigestRef(t, manifestDigest)
	if err := SignImage(paths, ref, vendorPrv, Endorsement{CAPrv: caPrv}); err != nil {
		t.Fatalf("sign image: %v", err)
	}

	latestRef, err := ociref.ParseReference("latest")
	if err != nil {
		t.Fatalf("parse tag: %v", err)
	}
	if err := VerifyImage(paths, latestRef, &wrongCAPrv.PublicKey); err == nil {
		t.Fatalf("expected verify image to fail against the wrong CA key")
	}
}

func TestVerifyImageRejectsTamperedConfig(t *testing.T) {
	paths, manifestDigest := singleManifestFixture(t)

	caPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate ca key: %v", err)
	}
	vendorPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate vendor key: %v", err)
	}

	ref := mustDigestRef(t, manifestDigest)
	if err := SignImage(paths, ref, vendorPrv, Endorsement{CAPrv: caPrv}); err != nil {
		t.Fatalf("sign image: %v", err)
	}

	latestRef, err := ociref.ParseReference("latest")
	if err != nil {
		t.Fatalf("parse tag: %v", err)
	}

	finalManifestDigest, err := ResolveReference(paths, latestRef)
	if err != nil {
		t.Fatalf("resolve reference: %v", err)
	}
	m, err := readManifest(paths.BlobPath(finalManifestDigest))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	configDigest, err := ociref.ParseDigest(m.Config.Digest.String())
	if err != nil {
		t.Fatalf("parse config digest: %v", err)
	}
	if err := os.WriteFile(paths.BlobPath(configDigest), []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tamper with config: %v", err)
	}

	if err := VerifyImage(paths, latestRef, &caPrv.PublicKey); err == nil {
		t.Fatalf("expected verify image to fail after the config blob was tampered with")
	}
}

// nestedIndexFixture builds registry/app with a two-level index: a
// top-level index.json pointing at a sub-index, which in turn points at
// the manifest built by singleManifestFixture. Signing the manifest must
// rehash and rename the sub-index file and bubble the new digest into
// index.json.
func nestedIndexFixture(t *testing.T) (AppPaths, ociref.Digest) {
	t.Helper()
	paths, manifestDigest := singleManifestFixture(t)
	appDir := paths.Dir()

	// Re-read the flat index.json that singleManifestFixture wrote, reuse
	// its single descriptor as the sub-index's content, and replace
	// index.json with a pointer to that sub-index.
	subIdxBytes, err := os.ReadFile(paths.IndexPath())
	if err != nil {
		t.Fatalf("read index.json: %v", err)
	}
	subIdxDigest := writeBlob(t, appDir, subIdxBytes)

	topIdx := ocispec.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: string(ociref.MediaTypeImageIndex),
		Manifests: []ocispec.Descriptor{
			{
				MediaType: string(ociref.MediaTypeImageIndex),
				Digest:    digestOf(subIdxDigest),
				Size:      blobSize(t, appDir, subIdxDigest),
			},
		},
	}
	if err := os.WriteFile(paths.IndexPath(), marshal(t, topIdx), 0o644); err != nil {
		t.Fatalf("write top index.json: %v", err)
	}

	return paths, manifestDigest
}

func TestSignImagePropagatesThroughNestedIndex(t *testing.T) {
	paths, manifestDigest := nestedIndexFixture(t)

	caPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate ca key: %v", err)
	}
	vendorPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate vendor key: %v", err)
	}

	ref := mustDigestRef(t, manifestDigest)
	if err := SignImage(paths, ref, vendorPrv, Endorsement{CAPrv: caPrv}); err != nil {
		t.Fatalf("sign image: %v", err)
	}

	topRaw, err := os.ReadFile(paths.IndexPath())
	if err != nil {
		t.Fatalf("read top index: %v", err)
	}
	var topIdx ocispec.Index
	if err := json.Unmarshal(topRaw, &topIdx); err != nil {
		t.Fatalf("unmarshal top index: %v", err)
	}
	if len(topIdx.Manifests) != 1 {
		t.Fatalf("expected one descriptor in top index, got %d", len(topIdx.Manifests))
	}

	subDigest, err := ociref.ParseDigest(topIdx.Manifests[0].Digest.String())
	if err != nil {
		t.Fatalf("parse sub-index digest: %v", err)
	}
	if _, err := os.Stat(paths.BlobPath(subDigest)); err != nil {
		t.Fatalf("expected rehashed sub-index at %s: %v", paths.BlobPath(subDigest), err)
	}

	subRaw, err := os.ReadFile(paths.BlobPath(subDigest))
	if err != nil {
		t.Fatalf("read sub-index: %v", err)
	}
	var subIdx ocispec.Index
	if err := json.Unmarshal(subRaw, &subIdx); err != nil {
		t.Fatalf("unmarshal sub-index: %v", err)
	}
	if len(subIdx.Manifests) != 1 {
		t.Fatalf("expected one descriptor in sub-index, got %d", len(subIdx.Manifests))
	}
	newManifestDigest, err := ociref.ParseDigest(subIdx.Manifests[0].Digest.String())
	if err != nil {
		t.Fatalf("parse manifest digest: %v", err)
	}
	if newManifestDigest.Equal(manifestDigest) {
		t.Fatalf("expected the manifest digest to change after signing")
	}
	if _, err := os.Stat(paths.BlobPath(newManifestDigest)); err != nil {
		t.Fatalf("expected rehashed manifest at %s: %v", paths.BlobPath(newManifestDigest), err)
	}
}

func TestRehashReturnsUnchangedWhenContentMatches(t *testing.T) {
	paths, manifestDigest := singleManifestFixture(t)

	newDigest, _, changed, err := Rehash(paths, manifestDigest)
	if err != nil {
		t.Fatalf("rehash: %v", err)
	}
	if changed {
		t.Fatalf("expected no change before any edit")
	}
	if !newDigest.Equal(manifestDigest) {
		t.Fatalf("expected unchanged digest to equal the original")
	}
}

func TestExtractSignImageRefusesExistingAppDir(t *testing.T) {
	root := t.TempDir()
	app := "com.example.app"
	if err := os.MkdirAll(filepath.Join(root, app), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	vendorPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate vendor key: %v", err)
	}
	caPrv, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate ca key: %v", err)
	}
	ref, err := ociref.ParseReference("latest")
	if err != nil {
		t.Fatalf("parse reference: %v", err)
	}

	tarPath := filepath.Join(t.TempDir(), app+".tar")
	if err := os.WriteFile(tarPath, []byte{}, 0o644); err != nil {
		t.Fatalf("write empty tar: %v", err)
	}

	err = ExtractSignImage(root, tarPath, app, ref, vendorPrv, Endorsement{CAPrv: caPrv})
	if err == nil {
		t.Fatalf("expected extract-sign-image to refuse an existing app directory")
	}
}
