package servertls

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// ReferenceValues is the set of expected attestation measurements parsed
// from the realm.reference-values subtree of an RA-TLS reference JSON
// document. The realm verifier a deployment plugs in as its
// ClientTokenVerifier consumes this set; this package only loads it.
type ReferenceValues struct {
	measurements map[string]struct{}
}

// LoadReferenceValues reads an RA-TLS reference JSON file and extracts its
// realm.reference-values subtree.
func LoadReferenceValues(path string) (*ReferenceValues, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading reference values %s: %v", ocierrors.ErrConfig, path, err)
	}
	return ParseReferenceValues(raw)
}

// ParseReferenceValues decodes an RA-TLS reference JSON document.
func ParseReferenceValues(raw []byte) (*ReferenceValues, error) {
	var doc struct {
		Realm struct {
			ReferenceValues []string `json:"reference-values"`
		} `json:"realm"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ocierrors.ErrJSONParse, err)
	}
	if len(doc.Realm.ReferenceValues) == 0 {
		return nil, fmt.Errorf("%w: no realm.reference-values in reference JSON", ocierrors.ErrConfig)
	}

	rv := &ReferenceValues{measurements: make(map[string]struct{}, len(doc.Realm.ReferenceValues))}
	for _, m := range doc.Realm.ReferenceValues {
		rv.measurements[m] = struct{}{}
	}
	return rv, nil
}

// Contains reports whether measurement is among the expected reference
// values.
func (rv *ReferenceValues) Contains(measurement string) bool {
	_, ok := rv.measurements[measurement]
	return ok
}

// Len returns the number of expected measurements.
func (rv *ReferenceValues) Len() int { return len(rv.measurements) }
