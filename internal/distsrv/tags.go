package distsrv

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/islet-oci/imagereg/internal/ociref"
)

type tagListResponse struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

func (s *server) handleTags(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	tags, ok := s.backend.GetTags(name)
	if !ok {
		handleNotFound(w, r)
		return
	}

	sorted := sortTagsCaseFold(tags)
	page := paginate(sorted, r.URL.Query().Get("last"), r.URL.Query().Get("n"))

	resp := tagListResponse{Name: name, Tags: page}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func sortTagsCaseFold(tags []ociref.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// paginate implements the cut-then-truncate rule: if last is present and
// found, drop everything up to and including it; if last is present and
// not found, the result is empty; then take at most n entries (n absent
// means all).
func paginate(sorted []string, last, n string) []string {
	start := 0
	if last != "" {
		idx := indexOfFold(sorted, last)
		if idx == -1 {
			return []string{}
		}
		start = idx + 1
	}

	rest := sorted[start:]

	if n == "" {
		return rest
	}
	count, err := strconv.Atoi(n)
	if err != nil || count < 0 {
		return rest
	}
	if count > len(rest) {
		count = len(rest)
	}
	return rest[:count]
}

func indexOfFold(sorted []string, target string) int {
	for i, s := range sorted {
		if strings.EqualFold(s, target) {
			return i
		}
	}
	return -1
}
