// Package ocierrors provides the sentinel error values shared across the
// registry store, distribution surface, client and signer.
//
// These sentinel errors allow callers to check for specific error conditions
// using errors.Is(), enabling programmatic error handling instead of string
// matching.
package ocierrors

import (
	"errors"
	"strconv"
)

// Format errors: malformed digests, tags, references, URLs and JSON.
var (
	// ErrInvalidDigest indicates a string did not parse as algo:hex.
	ErrInvalidDigest = errors.New("invalid digest")

	// ErrInvalidTag indicates a string did not match the tag grammar.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrInvalidReference indicates a string was neither a valid digest nor a valid tag.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrJSONParse indicates a JSON document could not be decoded.
	ErrJSONParse = errors.New("json parse failure")

	// ErrManifestFormat indicates a manifest, index or image config could not be decoded.
	ErrManifestFormat = errors.New("invalid manifest format")

	// ErrURLParsing indicates a host string conflicted with the configured transport scheme.
	ErrURLParsing = errors.New("url parsing failure")
)

// Integrity errors: declared metadata disagreeing with on-disk or on-wire bytes.
var (
	// ErrOciInvalid indicates an OCI layout, index or manifest invariant was violated.
	ErrOciInvalid = errors.New("oci layout invalid")

	// ErrUnsupportedMediaType indicates a descriptor's media type is not one this registry understands.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrResponseLengthInvalid indicates a response's Content-Length did not match the bytes received.
	ErrResponseLengthInvalid = errors.New("response content-length mismatch")

	// ErrResponseDigestInvalid indicates a response's Docker-Content-Digest did not verify.
	ErrResponseDigestInvalid = errors.New("response digest mismatch")

	// ErrDigestInvalid indicates a stored or downloaded blob's hash did not match its declared digest.
	ErrDigestInvalid = errors.New("digest mismatch")
)

// Layer errors.
var (
	// ErrLayerInvalid indicates a layer archive was malformed, referenced a
	// missing whiteout target, or escaped its unpack root.
	ErrLayerInvalid = errors.New("invalid layer")

	// ErrInvalidDiffID indicates the hash of a decoded layer did not match its declared diff_id.
	ErrInvalidDiffID = errors.New("diff id mismatch")
)

// Signer errors.
var (
	// ErrSignerInvalid indicates a key import, signing, verification, or chain-of-trust check failed.
	ErrSignerInvalid = errors.New("signer operation invalid")
)

// Transport errors.
var (
	// ErrConnection indicates the remote host could not be reached.
	ErrConnection = errors.New("connection failure")
)

// System errors.
var (
	// ErrConfig indicates a configuration value was invalid or internally inconsistent.
	ErrConfig = errors.New("invalid configuration")
)

// StatusError wraps a non-2xx HTTP response status observed by the client.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "unexpected status: " + strconv.Itoa(e.Code)
}
