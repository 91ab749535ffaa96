package servertls

import (
	"errors"
	"testing"

	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

func TestParseReferenceValues(t *testing.T) {
	raw := []byte(`{"realm":{"reference-values":["aaa111","bbb222"]},"other":"ignored"}`)

	rv, err := ParseReferenceValues(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rv.Len() != 2 {
		t.Fatalf("expected 2 measurements, got %d", rv.Len())
	}
	if !rv.Contains("aaa111") || !rv.Contains("bbb222") {
		t.Fatalf("expected both measurements to be present")
	}
	if rv.Contains("ccc333") {
		t.Fatalf("unexpected measurement reported present")
	}
}

func TestParseReferenceValuesRejectsEmpty(t *testing.T) {
	if _, err := ParseReferenceValues([]byte(`{"realm":{}}`)); !errors.Is(err, ocierrors.ErrConfig) {
		t.Fatalf("expected ErrConfig for missing reference-values, got %v", err)
	}
	if _, err := ParseReferenceValues([]byte(`not json`)); !errors.Is(err, ocierrors.ErrJSONParse) {
		t.Fatalf("expected ErrJSONParse for malformed document, got %v", err)
	}
}
