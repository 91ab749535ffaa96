package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/internal/signer"
)

var (
	verifyImageRegistry  string
	verifyImageApp       string
	verifyImageReference string
	verifyImageCAPub     string
)

var verifyImageCmd = &cobra.Command{
	Use:   "verify-image",
	Short: "Verify a signed manifest's config against the CA-endorsed vendor key",
	Args:  cobra.NoArgs,
	RunE:  runVerifyImage,
}

func init() {
	f := verifyImageCmd.Flags()
	f.StringVar(&verifyImageRegistry, "registry", "", "registry root (required)")
	f.StringVar(&verifyImageApp, "app", "", "application name (required)")
	f.StringVar(&verifyImageReference, "reference", "", "tag or digest of the manifest to verify (required)")
	f.StringVar(&verifyImageCAPub, "ca-pub", "", "path to the root-CA public key (required)")
	for _, name := range []string{"registry", "app", "reference", "ca-pub"} {
		_ = verifyImageCmd.MarkFlagRequired(name)
	}
}

func runVerifyImage(cmd *cobra.Command, args []string) error {
	ref, err := ociref.ParseReference(verifyImageReference)
	if err != nil {
		return fmt.Errorf("parse reference: %w", err)
	}
	caPub, err := readPublicKey(verifyImageCAPub)
	if err != nil {
		return err
	}

	paths := signer.AppPaths{Registry: verifyImageRegistry, App: verifyImageApp}
	if err := signer.VerifyImage(paths, ref, caPub); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	fmt.Println("image verified")
	return nil
}
