// Package signer implements the two-level vendor/CA image-signing chain.
// It leans entirely on the standard library's crypto/ecdsa and
// crypto/x509: ECDSA P-384 with SHA-384 digests, SEC1 DER for private
// keys and SPKI DER for public keys.
package signer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// ImportPrivateKey decodes a SEC1 DER-encoded P-384 private key.
func ImportPrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	key, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing private key: %v", ocierrors.ErrSignerInvalid, err)
	}
	if key.Curve != elliptic.P384() {
		return nil, fmt.Errorf("%w: private key is not on curve P-384", ocierrors.ErrSignerInvalid)
	}
	return key, nil
}

// ImportPublicKey decodes an SPKI DER-encoded P-384 public key.
func ImportPublicKey(der []byte) (*ecdsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing public key: %v", ocierrors.ErrSignerInvalid, err)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is not ECDSA", ocierrors.ErrSignerInvalid)
	}
	if ecPub.Curve != elliptic.P384() {
		return nil, fmt.Errorf("%w: public key is not on curve P-384", ocierrors.ErrSignerInvalid)
	}
	return ecPub, nil
}

// ExportPrivateKey encodes key as SEC1 DER.
func ExportPrivateKey(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling private key: %v", ocierrors.ErrSignerInvalid, err)
	}
	return der, nil
}

// ExportPublicKey encodes the public half of key as SPKI DER.
func ExportPublicKey(pub *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling public key: %v", ocierrors.ErrSignerInvalid, err)
	}
	return der, nil
}

// GenerateKey creates a new random P-384 signing key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generating key: %v", ocierrors.ErrSignerInvalid, err)
	}
	return key, nil
}

// Sign produces an ASN.1 DER ECDSA signature over the SHA-384 digest of msg.
func Sign(key *ecdsa.PrivateKey, msg []byte) ([]byte, error) {
	h := sha512.Sum384(msg)
	sig, err := ecdsa.SignASN1(rand.Reader, key, h[:])
	if err != nil {
		return nil, fmt.Errorf("%w: signing: %v", ocierrors.ErrSignerInvalid, err)
	}
	return sig, nil
}

// SignReader streams r and signs its SHA-384 digest, for signing blobs
// without holding them fully in memory.
func SignReader(key *ecdsa.PrivateKey, r io.Reader) ([]byte, error) {
	h := sha512.New384()
	if _, err := io.Copy(h, r); err != nil {
		return nil, fmt.Errorf("%w: reading stream to sign: %v", ocierrors.ErrSignerInvalid, err)
	}
	sig, err := ecdsa.SignASN1(rand.Reader, key, h.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: signing: %v", ocierrors.ErrSignerInvalid, err)
	}
	return sig, nil
}

// Verify checks an ASN.1 DER ECDSA signature over msg's SHA-384 digest.
func Verify(pub *ecdsa.PublicKey, msg, sig []byte) error {
	h := sha512.Sum384(msg)
	if !ecdsa.VerifyASN1(pub, h[:], sig) {
		return fmt.Errorf("%w: signature verification failed", ocierrors.ErrSignerInvalid)
	}
	return nil
}

// VerifyReader streams r and checks sig against its SHA-384 digest.
func VerifyReader(pub *ecdsa.PublicKey, r io.Reader, sig []byte) error {
	h := sha512.New384()
	if _, err := io.Copy(h, r); err != nil {
		return fmt.Errorf("%w: reading stream to verify: %v", ocierrors.ErrSignerInvalid, err)
	}
	if !ecdsa.VerifyASN1(pub, h.Sum(nil), sig) {
		return fmt.Errorf("%w: signature verification failed", ocierrors.ErrSignerInvalid)
	}
	return nil
}
