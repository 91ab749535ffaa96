package regstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/pkg/obslog"
)

// Registry composes Applications under a root directory and answers
// lookup operations. The capability set it exposes
// (GetTags/GetManifest/GetBlob) is expressed as the Backend interface in
// backend.go so the HTTP surface can be tested against a fake.
//
// Lookups take mu in read mode only; nothing writes after Import returns.
// The write side exists for a future hot-reload.
type Registry struct {
	mu   sync.RWMutex
	root string
	apps map[string]*Application
}

// Import scans root's direct subdirectories, loading each as an
// Application. A subdirectory that fails to load is logged and skipped;
// the registry root itself must be a directory, or Import fails outright.
func Import(root string) (*Registry, error) {
	obslog.Info("loading registry from %q", root)

	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("registry root %q: %w", root, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("registry path %q is not a directory", root)
	}

	reg := &Registry{root: root, apps: make(map[string]*Application)}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		appPath := filepath.Join(root, e.Name())
		if !e.IsDir() {
			obslog.Warn("non-directory %q found in registry root, ignoring", appPath)
			continue
		}
		app, err := importApplication(appPath)
		if err != nil {
			obslog.Error("failed to load application %q: %v", e.Name(), err)
			continue
		}
		reg.apps[e.Name()] = app
	}

	return reg, nil
}

// GetTags returns the tag names for an application, or (nil, false) if the
// application is unknown. The caller sorts and paginates.
func (r *Registry) GetTags(app string) ([]ociref.Tag, bool) {
	r.mu.RLock()
	a, ok := r.apps[app]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return a.Tags(), true
}

// GetManifest resolves a reference (digest or tag) to a Payload for an
// application's manifest or index.
func (r *Registry) GetManifest(app string, ref ociref.Reference) (*Payload, bool, error) {
	r.mu.RLock()
	a, ok := r.apps[app]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	var c Content
	if ref.IsDigest() {
		c, ok = a.ManifestByDigest(ref.Digest())
	} else {
		c, ok = a.ManifestByTag(ref.Tag())
	}
	if !ok {
		return nil, false, nil
	}

	p, ok, err := open(c)
	return p, ok, err
}

// GetBlob resolves a digest to a Payload for an application's config or
// layer blob. Tags are not accepted on the blob endpoint.
func (r *Registry) GetBlob(app string, d ociref.Digest) (*Payload, bool, error) {
	r.mu.RLock()
	a, ok := r.apps[app]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	c, ok := a.Blob(d)
	if !ok {
		return nil, false, nil
	}
	return open(c)
}
