package distsrv

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/islet-oci/imagereg/internal/ociref"
)

func (s *server) handleBlob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]
	digestStr := vars["digest"]

	d, err := ociref.ParseDigest(digestStr)
	if err != nil {
		handleNotFound(w, r)
		return
	}

	payload, ok, err := s.backend.GetBlob(name, d)
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
