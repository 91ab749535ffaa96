package distsrv

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/islet-oci/imagereg/internal/ociref"
)

func (s *server) handleManifest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]
	refStr := vars["reference"]

	ref, err := ociref.ParseReference(refStr)
	if err != nil {
		handleNotFound(w, r)
		return
	}

	payload, ok, err := s.backend.GetManifest(name, ref)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		handleNotFound(w, r)
		return
	}

	servePayload(w, r, payload)
}
