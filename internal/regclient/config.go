// Package regclient implements the pull-only OCI Distribution client.
// Client is the blocking variant; AsyncClient (async.go) fans out
// concurrent requests over the same Client using errgroup. The two share
// every parsing and verification code path and diverge only at the I/O
// boundary.
package regclient

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// TLSMode mirrors servertls.Mode on the client side: the scheme a host
// string is expected to carry is derived from this, not guessed.
type TLSMode int

const (
	ModeNoTLS TLSMode = iota
	ModeTLS
	ModeRaTLS
)

func (m TLSMode) scheme() string {
	if m == ModeNoTLS {
		return "http"
	}
	return "https"
}

// Config is an immutable value built once per client and never mutated
// afterward.
type Config struct {
	Host string
	Mode TLSMode
	TLS  *tls.Config // required when Mode != ModeNoTLS
	HTTP *http.Client
}

// resolvedHost validates and normalizes the configured host: if it
// carries a scheme, that scheme must match Mode's; if it does not, the
// correct scheme is prepended.
func (c Config) resolvedHost() (string, error) {
	wantScheme := c.Mode.scheme()

	if idx := strings.Index(c.Host, "://"); idx != -1 {
		gotScheme := c.Host[:idx]
		if gotScheme != wantScheme {
			return "", fmt.Errorf("%w: host scheme %q does not match transport mode (want %q)", ocierrors.ErrURLParsing, gotScheme, wantScheme)
		}
		return c.Host, nil
	}

	return wantScheme + "://" + c.Host, nil
}

func (c Config) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	transport := &http.Transport{}
	if c.Mode != ModeNoTLS {
		transport.TLSClientConfig = c.TLS
	}
	return &http.Client{Transport: transport}
}
