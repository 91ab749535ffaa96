// Package servertls builds the server-side transport acceptor. It selects
// between plain TCP, server-only TLS, and mutual RA-TLS, and serves
// HTTP/1.1 and HTTP/2 transparently per connection.
package servertls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"

	"github.com/islet-oci/imagereg/pkg/obslog"
	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// Mode selects the acceptor's transport: a closed, tagged-variant sum, not
// a boolean pair.
type Mode int

const (
	// NoTLS serves plain TCP with no encryption.
	NoTLS Mode = iota
	// TLS serves a server certificate with no client authentication.
	TLS
	// RaTLS requires a client certificate verified via a ClientTokenVerifier.
	RaTLS
)

// ClientTokenVerifier is the opaque attestation-token verification
// capability RA-TLS delegates to. Its implementation (chaining a remote
// attestation-service check and a realm reference-values check) is
// explicitly out of scope for this repository; callers supply their own.
type ClientTokenVerifier interface {
	// VerifyClientCertificate is invoked with the raw DER certificate
	// chain presented by the client during the TLS handshake. A non-nil
	// error fails the handshake.
	VerifyClientCertificate(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error
}

// Config describes how to build a server transport. The TLS-specific
// fields are meaningful only for the modes that need them; the value is
// built once by the caller and never mutated afterward.
type Config struct {
	Mode Mode

	// CertPEM/KeyPEM: PEM X.509 certificate chain and PKCS#8 private key,
	// required for Mode == TLS or Mode == RaTLS.
	CertPEM []byte
	KeyPEM  []byte

	// Verifier is required for Mode == RaTLS.
	Verifier ClientTokenVerifier
}

// Acceptor wraps a net.Listener configured per Config and serves an
// http.Handler over it, auto-negotiating HTTP/1.1 and HTTP/2 for TLS
// connections.
type Acceptor struct {
	listener net.Listener
	tlsConf  *tls.Config
}

// New builds an Acceptor bound to addr. The caller owns the returned
// listener's lifetime via Serve's context.
func New(addr string, cfg Config) (*Acceptor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}

	switch cfg.Mode {
	case NoTLS:
		return &Acceptor{listener: ln}, nil

	case TLS, RaTLS:
		tlsConf, err := buildTLSConfig(cfg)
		if err != nil {
			ln.Close()
			return nil, err
		}
		return &Acceptor{listener: ln, tlsConf: tlsConf}, nil

	default:
		ln.Close()
		return nil, fmt.Errorf("%w: unknown transport mode %d", ocierrors.ErrConfig, cfg.Mode)
	}
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(cfg.CertPEM, cfg.KeyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: load server certificate: %v", ocierrors.ErrConfig, err)
	}

	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.Mode == RaTLS {
		if cfg.Verifier == nil {
			return nil, fmt.Errorf("%w: RA-TLS mode requires a ClientTokenVerifier", ocierrors.ErrConfig)
		}
		tlsConf.ClientAuth = tls.RequireAnyClientCert
		tlsConf.VerifyPeerCertificate = cfg.Verifier.VerifyClientCertificate
	}

	return tlsConf, nil
}

// Serve runs an http.Server over the acceptor's listener until ctx is
// canceled. Handshake failures on individual connections are logged and
// the accept loop continues; they never bring the server down.
func (a *Acceptor) Serve(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Handler:   handler,
		TLSConfig: a.tlsConf,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		ln := tapListener{a.listener}
		if a.tlsConf != nil {
			// ServeTLS (not Serve over a manual tls.NewListener) is what
			// arms the standard library's HTTP/2 support, giving the
			// per-connection h2/http1.1 ALPN negotiation.
			errCh <- srv.ServeTLS(ln, "", "")
		} else {
			errCh <- srv.Serve(ln)
		}
	}()

	select {
	case <-ctx.Done():
		_ = srv.Close()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// tapListener logs every accept error, then returns it unchanged to
// http.Server, which decides whether the accept loop continues.
type tapListener struct {
	net.Listener
}

func (t tapListener) Accept() (net.Conn, error) {
	conn, err := t.Listener.Accept()
	if err != nil {
		obslog.Error("accept failure: %v", err)
		return nil, err
	}
	return conn, nil
}
