package ociref

import (
	"fmt"
	"regexp"

	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// tagPattern is the tag grammar from the data model.
var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]{0,127}$`)

// Tag is a human-readable alias for a manifest digest, scoped to an application.
type Tag string

// ParseTag validates s against the tag grammar.
func ParseTag(s string) (Tag, error) {
	if !tagPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ocierrors.ErrInvalidTag, s)
	}
	return Tag(s), nil
}

func (t Tag) String() string { return string(t) }

// Reference is the tagged union {Digest | Tag}. Exactly one of the two
// fields is meaningful; IsDigest reports which.
type Reference struct {
	digest   Digest
	tag      Tag
	isDigest bool
}

// ParseReference tries Digest first, then Tag, per the data model.
func ParseReference(s string) (Reference, error) {
	if d, err := ParseDigest(s); err == nil {
		return Reference{digest: d, isDigest: true}, nil
	}
	if t, err := ParseTag(s); err == nil {
		return Reference{tag: t}, nil
	}
	return Reference{}, fmt.Errorf("%w: %q", ocierrors.ErrInvalidReference, s)
}

// IsDigest reports whether the reference names a digest rather than a tag.
func (r Reference) IsDigest() bool { return r.isDigest }

// Digest returns the digest value; valid only when IsDigest() is true.
func (r Reference) Digest() Digest { return r.digest }

// Tag returns the tag value; valid only when IsDigest() is false.
func (r Reference) Tag() Tag { return r.tag }

func (r Reference) String() string {
	if r.isDigest {
		return r.digest.String()
	}
	return r.tag.String()
}
