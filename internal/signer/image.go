package signer

import (
	"archive/tar"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/pkg/obslog"
	"github.com/islet-oci/imagereg/pkg/ocierrors"
)

// Endorsement carries the vendor key's chain of trust for sign-image: either
// a pre-made signature of the vendor public key plus the CA public key to
// check it against, or the CA private key to produce that signature
// directly. Exactly one of the two forms must be populated, mirroring the
// CLI's mutually exclusive option groups.
type Endorsement struct {
	VendorPubSignature []byte
	CAPub              *ecdsa.PublicKey
	CAPrv              *ecdsa.PrivateKey
}

// resolve produces the vendor-public-key signature to embed in the
// manifest, either by verifying a caller-supplied one against caPub or by
// signing it fresh with caPrv.
func (e Endorsement) resolve(vendorPrv *ecdsa.PrivateKey) ([]byte, error) {
	switch {
	case e.VendorPubSignature != nil && e.CAPub != nil && e.CAPrv == nil:
		if err := VerifyVendorPubSignature(vendorPrv, e.VendorPubSignature, e.CAPub); err != nil {
			return nil, err
		}
		return e.VendorPubSignature, nil
	case e.VendorPubSignature == nil && e.CAPub == nil && e.CAPrv != nil:
		return SignVendorPub(vendorPrv, e.CAPrv)
	default:
		return nil, fmt.Errorf("%w: need either (vendor-pub-signature and ca-pub) or ca-prv", ocierrors.ErrSignerInvalid)
	}
}

// SignImage composes sign-config, rehash and index propagation:
//
//	READY -sign-config-> CONFIG_SIGNED -rehash(manifest)->
//	  {UNCHANGED -> DONE | CHANGED(new) -> UPDATE_INDEX(new) -> DONE}
func SignImage(paths AppPaths, ref ociref.Reference, vendorPrv *ecdsa.PrivateKey, endorsement Endorsement) error {
	manifestDigest, err := ResolveReference(paths, ref)
	if err != nil {
		return err
	}

	vendorPubSignature, err := endorsement.resolve(vendorPrv)
	if err != nil {
		return err
	}

	if err := SignConfig(paths, manifestDigest, vendorPrv, vendorPubSignature); err != nil {
		return err
	}

	newDigest, newSize, changed, err := Rehash(paths, manifestDigest)
	if err != nil {
		return err
	}
	if !changed {
		obslog.Info("manifest %s unchanged after signing, no index update needed", manifestDigest)
		return nil
	}

	obslog.Info("manifest rehashed from %s to %s, updating index", manifestDigest, newDigest)
	if _, err := PropagateIndex(paths, paths.IndexPath(), manifestDigest, newDigest, newSize); err != nil {
		return err
	}

	obslog.Info("signed image %s/%s (%s)", paths.App, ref, newDigest)
	return nil
}

// ExtractSignImage untars an image tree into registry/{app} and then runs
// SignImage against it. The app name defaults to the tar's file stem. An
// existing app directory is refused rather than merged into or
// overwritten.
func ExtractSignImage(registry, tarPath, app string, ref ociref.Reference, vendorPrv *ecdsa.PrivateKey, endorsement Endorsement) error {
	if app == "" {
		base := filepath.Base(tarPath)
		app = strings.TrimSuffix(base, filepath.Ext(base))
	}

	paths := AppPaths{Registry: registry, App: app}
	appDir := paths.Dir()

	if err := os.Mkdir(appDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating app directory %s: %v", ocierrors.ErrSignerInvalid, appDir, err)
	}

	f, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ocierrors.ErrSignerInvalid, tarPath, err)
	}
	defer f.Close()

	if err := untar(f, appDir); err != nil {
		return err
	}

	obslog.Info("unpacked %s into %s", tarPath, appDir)
	return SignImage(paths, ref, vendorPrv, endorsement)
}

// untar extracts a plain (uncompressed) tar stream into dest, rejecting any
// entry that would resolve outside dest.
func untar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reading tar: %v", ocierrors.ErrSignerInvalid, err)
		}

		target := filepath.Join(dest, hdr.Name)
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) && target != filepath.Clean(dest) {
			return fmt.Errorf("%w: tar entry %q escapes destination", ocierrors.ErrSignerInvalid, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)|0o700); err != nil {
				return fmt.Errorf("%w: %v", ocierrors.ErrSignerInvalid, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("%w: %v", ocierrors.ErrSignerInvalid, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return fmt.Errorf("%w: %v", ocierrors.ErrSignerInvalid, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("%w: %v", ocierrors.ErrSignerInvalid, err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("%w: %v", ocierrors.ErrSignerInvalid, err)
			}
		default:
			// Symlinks and other special entries are not expected in a
			// signed image tree; skip rather than fail the whole extract.
			obslog.Warn("skipping unsupported tar entry %q (type %d)", hdr.Name, hdr.Typeflag)
		}
	}
}

// VerifyImage recomputes the config's hash, decodes the three signature
// annotations from the manifest, and checks the vendor-key endorsement and
// the config signature.
func VerifyImage(paths AppPaths, ref ociref.Reference, caPub *ecdsa.PublicKey) error {
	manifestDigest, err := ResolveReference(paths, ref)
	if err != nil {
		return err
	}
	manifestPath := paths.BlobPath(manifestDigest)

	m, err := readManifest(manifestPath)
	if err != nil {
		return err
	}

	configDigest, err := ociref.ParseDigest(m.Config.Digest.String())
	if err != nil {
		return err
	}
	configPath := paths.BlobPath(configDigest)

	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("%w: reading config blob %s: %v", ocierrors.ErrSignerInvalid, configPath, err)
	}
	ok, err := ociref.Verify(configDigest, configBytes)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: config blob %s fails hash check", ocierrors.ErrSignerInvalid, configDigest)
	}

	sigHex, vendorPubHex, vendorSigHex, err := decodeAnnotations(m.Annotations)
	if err != nil {
		return err
	}

	vendorPub, err := ImportPublicKey(vendorPubHex)
	if err != nil {
		return err
	}
	if err := Verify(caPub, vendorPubHex, vendorSigHex); err != nil {
		return fmt.Errorf("%w: vendor public key not endorsed by ca: %v", ocierrors.ErrSignerInvalid, err)
	}

	if err := Verify(vendorPub, configBytes, sigHex); err != nil {
		return fmt.Errorf("%w: config signature invalid: %v", ocierrors.ErrSignerInvalid, err)
	}

	return nil
}

func decodeAnnotations(ann map[string]string) (sig, vendorPub, vendorSig []byte, err error) {
	sigHex, ok := ann[AnnotationSignature]
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: missing %s annotation", ocierrors.ErrSignerInvalid, AnnotationSignature)
	}
	vendorPubHex, ok := ann[AnnotationVendorPub]
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: missing %s annotation", ocierrors.ErrSignerInvalid, AnnotationVendorPub)
	}
	vendorSigHex, ok := ann[AnnotationVendorPubSignature]
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: missing %s annotation", ocierrors.ErrSignerInvalid, AnnotationVendorPubSignature)
	}

	if sig, err = decodeHex(sigHex); err != nil {
		return nil, nil, nil, err
	}
	if vendorPub, err = decodeHex(vendorPubHex); err != nil {
		return nil, nil, nil, err
	}
	if vendorSig, err = decodeHex(vendorSigHex); err != nil {
		return nil, nil, nil, err
	}
	return sig, vendorPub, vendorSig, nil
}

func decodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed hex annotation: %v", ocierrors.ErrSignerInvalid, err)
	}
	return b, nil
}
