package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/internal/signer"
)

var (
	signConfigRegistry           string
	signConfigApp                string
	signConfigDigest             string
	signConfigVendorPrv          string
	signConfigVendorPubSignature string
	signConfigCAPub              string
)

var signConfigCmd = &cobra.Command{
	Use:   "sign-config",
	Short: "Sign the config blob referenced by a manifest and annotate the manifest",
	Args:  cobra.NoArgs,
	RunE:  runSignConfig,
}

func init() {
	f := signConfigCmd.Flags()
	f.StringVar(&signConfigRegistry, "registry", "", "registry root (required)")
	f.StringVar(&signConfigApp, "app", "", "application name (required)")
	f.StringVar(&signConfigDigest, "digest", "", "digest of the manifest to sign (required)")
	f.StringVar(&signConfigVendorPrv, "vendor-prv", "", "path to the vendor private key (required)")
	f.StringVar(&signConfigVendorPubSignature, "vendor-pub-signature", "", "path to the CA's signature over the vendor public key (required)")
	f.StringVar(&signConfigCAPub, "ca-pub", "", "path to the root-CA public key (required)")
	for _, name := range []string{"registry", "app", "digest", "vendor-prv", "vendor-pub-signature", "ca-pub"} {
		_ = signConfigCmd.MarkFlagRequired(name)
	}
}

func runSignConfig(cmd *cobra.Command, args []string) error {
	manifestDigest, err := ociref.ParseDigest(signConfigDigest)
	if err != nil {
		return fmt.Errorf("parse digest: %w", err)
	}
	vendorPrv, err := readPrivateKey(signConfigVendorPrv)
	if err != nil {
		return err
	}
	caPub, err := readPublicKey(signConfigCAPub)
	if err != nil {
		return err
	}
	vendorPubSignature, err := os.ReadFile(signConfigVendorPubSignature)
	if err != nil {
		return fmt.Errorf("read vendor-pub-signature: %w", err)
	}

	if err := signer.VerifyVendorPubSignature(vendorPrv, vendorPubSignature, caPub); err != nil {
		return err
	}

	paths := signer.AppPaths{Registry: signConfigRegistry, App: signConfigApp}
	if err := signer.SignConfig(paths, manifestDigest, vendorPrv, vendorPubSignature); err != nil {
		return err
	}

	fmt.Println("config signed")
	return nil
}
