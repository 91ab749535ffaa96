// Package distsrv implements the pull-only subset of the OCI Distribution
// Specification v2. It depends only on the regstore.Backend
// capability set, not a concrete *regstore.Registry, so it can be driven in
// tests against an in-memory fake.
package distsrv

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/islet-oci/imagereg/internal/regstore"
)

const notFoundBody = "404 page not found"

// NewRouter builds the routed HTTP handler for a registry backend.
func NewRouter(backend regstore.Backend) http.Handler {
	s := &server{backend: backend}

	r := mux.NewRouter()
	r.HandleFunc("/v2/", s.handleVersion).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/v2/{name}/tags/list", s.handleTags).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/v2/{name}/manifests/{reference}", s.handleManifest).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/v2/{name}/blobs/{digest}", s.handleBlob).Methods(http.MethodGet, http.MethodHead)
	r.NotFoundHandler = http.HandlerFunc(handleNotFound)

	return r
}

type server struct {
	backend regstore.Backend
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(notFoundBody))
}

func (s *server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write([]byte("OCI Distribution API\n"))
	}
}
