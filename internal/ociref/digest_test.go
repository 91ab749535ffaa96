package ociref

import "testing"

func TestDigestRoundTrip(t *testing.T) {
	cases := []string{
		"sha256:" + fixedHex(64, 'a'),
		"sha512:" + fixedHex(128, 'b'),
	}

	for _, s := range cases {
		d, err := ParseDigest(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if d.String() != s {
			t.Fatalf("round trip: got %q, want %q", d.String(), s)
		}
		wantPath := string(d.Algorithm()) + "/" + d.Hex()
		if d.Path() != wantPath {
			t.Fatalf("path: got %q, want %q", d.Path(), wantPath)
		}
	}
}

func TestDigestRejectsBadHex(t *testing.T) {
	if _, err := ParseDigest("sha256:not-hex"); err == nil {
		t.Fatalf("expected error for non-hex digest")
	}
	if _, err := ParseDigest("sha256:" + fixedHex(10, 'a')); err == nil {
		t.Fatalf("expected error for short hex digest")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	b := []byte("hello world")
	d, err := FromBytes(SHA256, b)
	if err != nil {
		t.Fatalf("from bytes: %v", err)
	}
	ok, err := Verify(d, b)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected verify to succeed")
	}
	ok, err = Verify(d, []byte("tampered"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("expected verify to fail on tampered bytes")
	}
}

func TestTagGrammar(t *testing.T) {
	valid := []string{"latest", "v1.2.3", "_underscore", "a"}
	for _, s := range valid {
		if _, err := ParseTag(s); err != nil {
			t.Fatalf("expected %q to be a valid tag: %v", s, err)
		}
	}

	invalid := []string{"", "-leading-dash", "has space"}
	for _, s := range invalid {
		if _, err := ParseTag(s); err == nil {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestParseReferencePrefersDigest(t *testing.T) {
	s := "sha256:" + fixedHex(64, 'c')
	ref, err := ParseReference(s)
	if err != nil {
		t.Fatalf("parse reference: %v", err)
	}
	if !ref.IsDigest() {
		t.Fatalf("expected a digest-shaped reference")
	}

	ref, err = ParseReference("latest")
	if err != nil {
		t.Fatalf("parse reference: %v", err)
	}
	if ref.IsDigest() {
		t.Fatalf("expected a tag-shaped reference")
	}
}

func fixedHex(n int, c byte) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = c
	}
	return string(buf)
}
