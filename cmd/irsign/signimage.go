package main

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/internal/signer"
)

var (
	signImageRegistry           string
	signImageApp                string
	signImageReference          string
	signImageVendorPrv          string
	signImageVendorPubSignature string
	signImageCAPub              string
	signImageCAPrv              string
)

var signImageCmd = &cobra.Command{
	Use:   "sign-image",
	Short: "Sign the manifest's config, rehash it, and propagate the digest change through the index",
	Long: `sign-image composes sign-config, rehash and index propagation, per the
state machine:

  READY -sign-config-> CONFIG_SIGNED -rehash(manifest)->
    {UNCHANGED -> DONE | CHANGED(new) -> UPDATE_INDEX(new) -> DONE}

Pass either (--vendor-pub-signature and --ca-pub) to use a pre-made CA
endorsement of the vendor key, or --ca-prv to sign that endorsement fresh.`,
	Args: cobra.NoArgs,
	RunE: runSignImage,
}

func init() {
	addSignImageFlags(signImageCmd.Flags())
	for _, name := range []string{"registry", "app", "reference", "vendor-prv"} {
		_ = signImageCmd.MarkFlagRequired(name)
	}
}

// addSignImageFlags registers the flag set shared by sign-image and
// extract-sign-image.
func addSignImageFlags(f *pflag.FlagSet) {
	f.StringVar(&signImageRegistry, "registry", "", "registry root (required)")
	f.StringVar(&signImageApp, "app", "", "application name (required for sign-image; defaults to the tar's file stem for extract-sign-image)")
	f.StringVar(&signImageReference, "reference", "", "tag or digest of the manifest to sign (required)")
	f.StringVar(&signImageVendorPrv, "vendor-prv", "", "path to the vendor private key (required)")
	f.StringVar(&signImageVendorPubSignature, "vendor-pub-signature", "", "path to the CA's signature over the vendor public key")
	f.StringVar(&signImageCAPub, "ca-pub", "", "path to the root-CA public key")
	f.StringVar(&signImageCAPrv, "ca-prv", "", "path to the root-CA private key")
}

func runSignImage(cmd *cobra.Command, args []string) error {
	paths := signer.AppPaths{Registry: signImageRegistry, App: signImageApp}
	ref, vendorPrv, endorsement, err := resolveSignImageArgs()
	if err != nil {
		return err
	}

	if err := signer.SignImage(paths, ref, vendorPrv, endorsement); err != nil {
		return err
	}

	fmt.Println("image signed")
	return nil
}

// resolveSignImageArgs parses the reference, loads the vendor key, and
// builds the Endorsement from whichever of the two mutually exclusive
// option groups was supplied.
func resolveSignImageArgs() (ociref.Reference, *ecdsa.PrivateKey, signer.Endorsement, error) {
	ref, err := ociref.ParseReference(signImageReference)
	if err != nil {
		return ociref.Reference{}, nil, signer.Endorsement{}, fmt.Errorf("parse reference: %w", err)
	}

	vendorPrv, err := readPrivateKey(signImageVendorPrv)
	if err != nil {
		return ociref.Reference{}, nil, signer.Endorsement{}, err
	}

	endorsement, err := buildEndorsement()
	if err != nil {
		return ociref.Reference{}, nil, signer.Endorsement{}, err
	}

	return ref, vendorPrv, endorsement, nil
}

func buildEndorsement() (signer.Endorsement, error) {
	switch {
	case signImageVendorPubSignature != "" && signImageCAPub != "" && signImageCAPrv == "":
		sig, err := os.ReadFile(signImageVendorPubSignature)
		if err != nil {
			return signer.Endorsement{}, fmt.Errorf("read vendor-pub-signature: %w", err)
		}
		caPub, err := readPublicKey(signImageCAPub)
		if err != nil {
			return signer.Endorsement{}, err
		}
		return signer.Endorsement{VendorPubSignature: sig, CAPub: caPub}, nil

	case signImageVendorPubSignature == "" && signImageCAPub == "" && signImageCAPrv != "":
		caPrv, err := readPrivateKey(signImageCAPrv)
		if err != nil {
			return signer.Endorsement{}, err
		}
		return signer.Endorsement{CAPrv: caPrv}, nil

	default:
		return signer.Endorsement{}, fmt.Errorf("pass either (--vendor-pub-signature and --ca-pub) or --ca-prv")
	}
}
