package signer

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/pkg/atomicfile"
	"github.com/islet-oci/imagereg/pkg/obslog"
	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// Annotation keys the signer reads and writes on a manifest, per the data
// model's "Signed Manifest annotations".
const (
	AnnotationSignature          = "com.samsung.islet.image.signature"
	AnnotationVendorPub          = "com.samsung.islet.image.vendorpub"
	AnnotationVendorPubSignature = "com.samsung.islet.image.vendorpub.signature"
)

const (
	blobsSubdir   = "blobs"
	indexJSONFile = "index.json"
)

// AppPaths locates the files of one application within a registry root.
// The signer addresses files directly rather than through a loaded
// Registry; it runs offline on a quiescent tree, never inside the server
// process.
type AppPaths struct {
	Registry string
	App      string
}

// Dir is the application's root directory.
func (p AppPaths) Dir() string { return filepath.Join(p.Registry, p.App) }

// BlobsDir is the application's blobs directory.
func (p AppPaths) BlobsDir() string { return filepath.Join(p.Dir(), blobsSubdir) }

// BlobPath resolves a digest to its on-disk path under blobs/.
func (p AppPaths) BlobPath(d ociref.Digest) string { return filepath.Join(p.BlobsDir(), d.Path()) }

// IndexPath is the application's top-level index.json.
func (p AppPaths) IndexPath() string { return filepath.Join(p.Dir(), indexJSONFile) }

// ResolveReference resolves a Reference to a manifest digest. A Digest
// reference is returned as-is; a Tag reference is looked up among the
// top-level index's ref.name annotations, the same place the registry
// loader reads tags from.
func ResolveReference(paths AppPaths, ref ociref.Reference) (ociref.Digest, error) {
	if ref.IsDigest() {
		return ref.Digest(), nil
	}

	raw, err := os.ReadFile(paths.IndexPath())
	if err != nil {
		return ociref.Digest{}, fmt.Errorf("%w: reading index: %v", ocierrors.ErrSignerInvalid, err)
	}
	var idx ocispec.Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return ociref.Digest{}, fmt.Errorf("%w: %v", ocierrors.ErrManifestFormat, err)
	}

	want := ref.Tag().String()
	for _, desc := range idx.Manifests {
		if desc.Annotations[ocispec.AnnotationRefName] == want {
			return ociref.ParseDigest(desc.Digest.String())
		}
	}
	return ociref.Digest{}, fmt.Errorf("%w: tag %q not found in %s", ocierrors.ErrSignerInvalid, want, paths.IndexPath())
}

// VerifyVendorPubSignature checks that the CA public key endorses the
// vendor public key derived from vendorPrv: step 1 of sign-config.
func VerifyVendorPubSignature(vendorPrv *ecdsa.PrivateKey, vendorPubSignature []byte, caPub *ecdsa.PublicKey) error {
	vendorPubDER, err := ExportPublicKey(&vendorPrv.PublicKey)
	if err != nil {
		return err
	}
	if err := Verify(caPub, vendorPubDER, vendorPubSignature); err != nil {
		return fmt.Errorf("%w: vendor public key not endorsed by ca: %v", ocierrors.ErrSignerInvalid, err)
	}
	return nil
}

// SignVendorPub signs the vendor public key (derived from vendorPrv) with
// the CA private key: the direct-endorsement path of sign-image, used when
// the caller has the CA private key instead of a pre-made signature.
func SignVendorPub(vendorPrv, caPrv *ecdsa.PrivateKey) ([]byte, error) {
	vendorPubDER, err := ExportPublicKey(&vendorPrv.PublicKey)
	if err != nil {
		return nil, err
	}
	return Sign(caPrv, vendorPubDER)
}

// readManifest loads and JSON-decodes the manifest file at path. The
// signer operates directly on files rather than through regstore's loader,
// since it runs offline against a tree the server is not serving.
func readManifest(path string) (ocispec.Manifest, error) {
	var m ocispec.Manifest
	raw, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("%w: reading manifest %s: %v", ocierrors.ErrSignerInvalid, path, err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ocierrors.ErrManifestFormat, err)
	}
	return m, nil
}

func writeManifestPretty(path string, m ocispec.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling manifest: %v", ocierrors.ErrSignerInvalid, err)
	}
	return atomicfile.Rewrite(path, data)
}

// SignConfig loads the manifest at manifestDigest, locates its config
// descriptor, streaming-signs the config blob with the vendor private key,
// and inserts (or overwrites) the three annotations on the manifest,
// rewriting it pretty-printed in place. The manifest is not renamed here;
// Rehash does that separately.
func SignConfig(paths AppPaths, manifestDigest ociref.Digest, vendorPrv *ecdsa.PrivateKey, vendorPubSignature []byte) error {
	manifestPath := paths.BlobPath(manifestDigest)
	m, err := readManifest(manifestPath)
	if err != nil {
		return err
	}

	configDigest, err := ociref.ParseDigest(m.Config.Digest.String())
	if err != nil {
		return err
	}
	configPath := paths.BlobPath(configDigest)

	config, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("%w: opening config blob %s: %v", ocierrors.ErrSignerInvalid, configPath, err)
	}
	defer config.Close()

	sig, err := SignReader(vendorPrv, config)
	if err != nil {
		return err
	}

	vendorPubDER, err := ExportPublicKey(&vendorPrv.PublicKey)
	if err != nil {
		return err
	}

	if m.Annotations == nil {
		m.Annotations = make(map[string]string, 3)
	}
	m.Annotations[AnnotationSignature] = hex.EncodeToString(sig)
	m.Annotations[AnnotationVendorPub] = hex.EncodeToString(vendorPubDER)
	m.Annotations[AnnotationVendorPubSignature] = hex.EncodeToString(vendorPubSignature)

	if err := writeManifestPretty(manifestPath, m); err != nil {
		return err
	}

	obslog.Info("signed config for manifest %s in %s", manifestDigest, paths.Dir())
	return nil
}

// Rehash recomputes the hash of the file currently stored at d's path. If
// the hash differs from d (the file was rewritten since d was computed),
// the file is renamed to its new digest path and the new digest and size
// are returned with changed=true. A hash that still matches is a no-op.
func Rehash(paths AppPaths, d ociref.Digest) (newDigest ociref.Digest, newSize int64, changed bool, err error) {
	path := paths.BlobPath(d)
	f, err := os.Open(path)
	if err != nil {
		return ociref.Digest{}, 0, false, fmt.Errorf("%w: opening %s: %v", ocierrors.ErrSignerInvalid, path, err)
	}
	defer f.Close()

	h, err := ociref.NewHasher(d.Algorithm())
	if err != nil {
		return ociref.Digest{}, 0, false, err
	}
	size, err := io.Copy(h, f)
	if err != nil {
		return ociref.Digest{}, 0, false, fmt.Errorf("%w: hashing %s: %v", ocierrors.ErrSignerInvalid, path, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	newD := ociref.NewDigestUnchecked(string(d.Algorithm()), sum)
	if newD.String() == d.String() {
		return d, size, false, nil
	}

	newPath := paths.BlobPath(newD)
	f.Close()
	if err := atomicfile.Rename(path, newPath); err != nil {
		return ociref.Digest{}, 0, false, fmt.Errorf("%w: %v", ocierrors.ErrSignerInvalid, err)
	}

	obslog.Info("rehashed %s to %s", d, newD)
	return newD, size, true, nil
}

// PropagateIndex walks path (an ImageIndex file: index.json for the
// top-level call, a nested sub-index file for recursive calls) replacing
// every descriptor whose digest equals oldD with (newD, newSize). When a
// nested sub-index's content changes, the caller rehashes and, if the hash
// moved, renames that sub-index file, bubbling its new (digest, size) into
// its own parent's descriptor. index.json itself is only ever rewritten in
// place by this function and is never renamed; nothing ever calls Rehash
// on it.
func PropagateIndex(paths AppPaths, path string, oldD, newD ociref.Digest, newSize int64) (changed bool, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("%w: reading index %s: %v", ocierrors.ErrSignerInvalid, path, err)
	}
	var idx ocispec.Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return false, fmt.Errorf("%w: %v", ocierrors.ErrManifestFormat, err)
	}

	for i := range idx.Manifests {
		desc := &idx.Manifests[i]
		descDigest, perr := ociref.ParseDigest(desc.Digest.String())
		if perr != nil {
			return false, perr
		}

		if descDigest.String() == oldD.String() {
			desc.Digest = digest.Digest(newD.String())
			desc.Size = newSize
			changed = true
			continue
		}

		if ociref.MediaType(desc.MediaType) != ociref.MediaTypeImageIndex {
			continue
		}

		subPath := paths.BlobPath(descDigest)
		subChanged, serr := PropagateIndex(paths, subPath, oldD, newD, newSize)
		if serr != nil {
			return false, serr
		}
		if !subChanged {
			continue
		}

		// The sub-index's own file content changed (it was rewritten by
		// the recursive call above); its identity must be rehashed and,
		// if moved, renamed, then bubbled into this descriptor.
		rehashedDigest, rehashedSize, rehashedChanged, rerr := Rehash(paths, descDigest)
		if rerr != nil {
			return false, rerr
		}
		if rehashedChanged {
			desc.Digest = digest.Digest(rehashedDigest.String())
		}
		desc.Size = rehashedSize
		changed = true
	}

	if !changed {
		return false, nil
	}

	out, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return false, fmt.Errorf("%w: marshaling index %s: %v", ocierrors.ErrSignerInvalid, path, err)
	}
	if err := atomicfile.Rewrite(path, out); err != nil {
		return false, err
	}

	return true, nil
}
