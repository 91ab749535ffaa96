package regstore

import "github.com/islet-oci/imagereg/internal/ociref"

// Backend is the capability set the distribution surface depends on. It is
// expressed as an interface, rather than a concrete dependency on
// *Registry, so tests can substitute an in-memory fake.
type Backend interface {
	GetTags(app string) ([]ociref.Tag, bool)
	GetManifest(app string, ref ociref.Reference) (*Payload, bool, error)
	GetBlob(app string, d ociref.Digest) (*Payload, bool, error)
}

var _ Backend = (*Registry)(nil)
