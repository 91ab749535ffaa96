package distsrv

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/internal/regstore"
)

// buildFixtureRegistry writes a minimal registry with one tagged manifest,
// its config blob and one layer blob, and returns the layer blob's digest
// and size.
func buildFixtureRegistry(t *testing.T) (*regstore.Registry, string, int64) {
	t.Helper()
	root := t.TempDir()
	appDir := filepath.Join(root, "com.example.app")
	mustMkdir(t, filepath.Join(appDir, "blobs", "sha256"))

	blobContent := []byte("0123456789abcdefghij")
	blobDigest := writeBlobFixture(t, appDir, blobContent)

	configContent := []byte(`{"architecture":"amd64","os":"linux"}`)
	configDigest := writeBlobFixture(t, appDir, configContent)

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
				Digest:    digest.Digest(blobDigest.String()),
				Size:      int64(len(blobContent)),
			},
		},
	}
	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	manifestDigest := writeBlobFixture(t, appDir, manifestBytes)

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
	return reg, blobDigest.String(), int64(len(blobContent))
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func writeBlobFixture(t *testing.T, appDir string, content []byte) ociref.Digest {
	t.Helper()
	d, err := ociref.FromBytes(ociref.SHA256, content)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	path := filepath.Join(appDir, "blobs", d.Path())
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	return d
}

func TestTagsList(t *testing.T) {
	reg, _, _ := buildFixtureRegistry(t)
	router := NewRouter(reg)

	req := httptest.NewRequest(http.MethodGet, "/v2/com.example.app/tags/list", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	want := `{"name":"com.example.app","tags":["latest"]}` + "\n"
	if rec.Body.String() != want {
		t.Fatalf("body: got %q want %q", rec.Body.String(), want)
	}
}

func TestBlobRange(t *testing.T) {
	reg, blobDigest, size := buildFixtureRegistry(t)
	router := NewRouter(reg)

	req := httptest.NewRequest(http.MethodGet, "/v2/com.example.app/blobs/"+blobDigest, nil)
	req.Header.Set("Range", "bytes=10-")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status: got %d", rec.Code)
	}
	wantRange := "bytes 10-" + strconv.FormatInt(size-1, 10) + "/" + strconv.FormatInt(size, 10)
	if got := rec.Header().Get("Content-Range"); got != wantRange {
		t.Fatalf("content-range: got %q want %q", got, wantRange)
	}
	if got := rec.Header().Get("Docker-Content-Digest"); got != blobDigest {
		t.Fatalf("docker-content-digest: got %q want %q", got, blobDigest)
	}

	badReq := httptest.NewRequest(http.MethodGet, "/v2/com.example.app/blobs/"+blobDigest, nil)
	badReq.Header.Set("Range", "bytes=10-20")
	badRec := httptest.NewRecorder()
	router.ServeHTTP(badRec, badReq)
	if badRec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("expected 416 for explicit-end range, got %d", badRec.Code)
	}
}

func TestManifestHeadThenGet(t *testing.T) {
	reg, _, _ := buildFixtureRegistry(t)
	router := NewRouter(reg)

	headReq := httptest.NewRequest(http.MethodHead, "/v2/com.example.app/manifests/latest", nil)
	headRec := httptest.NewRecorder()
	router.ServeHTTP(headRec, headReq)
	if headRec.Code != http.StatusOK {
		t.Fatalf("head status: got %d", headRec.Code)
	}
	if headRec.Body.Len() != 0 {
		t.Fatalf("expected empty body on HEAD, got %d bytes", headRec.Body.Len())
	}
	dgst := headRec.Header().Get("Docker-Content-Digest")
	if dgst == "" {
		t.Fatalf("expected Docker-Content-Digest header on HEAD")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/v2/com.example.app/manifests/"+dgst, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status: got %d", getRec.Code)
	}
	if getRec.Header().Get("Docker-Content-Digest") != dgst {
		t.Fatalf("digest mismatch between head and get")
	}
	if getRec.Body.Len() == 0 {
		t.Fatalf("expected non-empty body on GET")
	}
}
