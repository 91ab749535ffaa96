package regstore

import (
	"encoding/json"
	"fmt"
	"os"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

const (
	imageLayoutVersion = "1.0.0"
	ociLayoutFile      = "oci-layout"
	indexJSONFile      = "index.json"
	blobsSubdir        = "blobs"
)

// loadOciLayout parses and validates the oci-layout marker file.
func loadOciLayout(path string) (ocispec.ImageLayout, error) {
	var layout ocispec.ImageLayout
	b, err := os.ReadFile(path)
	if err != nil {
		return layout, fmt.Errorf("read oci-layout: %w", err)
	}
	if err := json.Unmarshal(b, &layout); err != nil {
		return layout, fmt.Errorf("%w: %v", ocierrors.ErrJSONParse, err)
	}
	if layout.Version != imageLayoutVersion {
		return layout, fmt.Errorf("%w: imageLayoutVersion %q, want %q", ocierrors.ErrOciInvalid, layout.Version, imageLayoutVersion)
	}
	return layout, nil
}

// loadImageIndex parses and validates an ImageIndex file: schemaVersion
// must be 2 and mediaType, when present, must be image.index.
func loadImageIndex(path string) (ocispec.Index, error) {
	var idx ocispec.Index
	b, err := os.ReadFile(path)
	if err != nil {
		return idx, fmt.Errorf("read index: %w", err)
	}
	if err := json.Unmarshal(b, &idx); err != nil {
		return idx, fmt.Errorf("%w: %v", ocierrors.ErrJSONParse, err)
	}
	if err := validateIndex(idx); err != nil {
		return idx, err
	}
	return idx, nil
}

func validateIndex(idx ocispec.Index) error {
	if idx.SchemaVersion != 2 {
		return fmt.Errorf("%w: index schemaVersion %d, want 2", ocierrors.ErrOciInvalid, idx.SchemaVersion)
	}
	if idx.MediaType != "" && idx.MediaType != string(ocispec.MediaTypeImageIndex) {
		return fmt.Errorf("%w: index mediaType %q", ocierrors.ErrOciInvalid, idx.MediaType)
	}
	return nil
}

// loadImageManifest parses and validates an ImageManifest file.
func loadImageManifest(path string) (ocispec.Manifest, error) {
	var m ocispec.Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ocierrors.ErrJSONParse, err)
	}
	if err := validateManifest(m); err != nil {
		return m, err
	}
	return m, nil
}

func validateManifest(m ocispec.Manifest) error {
	if m.SchemaVersion != 2 {
		return fmt.Errorf("%w: manifest schemaVersion %d, want 2", ocierrors.ErrOciInvalid, m.SchemaVersion)
	}
	if m.MediaType != "" && m.MediaType != string(ocispec.MediaTypeImageManifest) {
		return fmt.Errorf("%w: manifest mediaType %q", ocierrors.ErrOciInvalid, m.MediaType)
	}
	return nil
}
