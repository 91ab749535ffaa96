package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/internal/signer"
)

var extractSignImageFilename string

var extractSignImageCmd = &cobra.Command{
	Use:   "extract-sign-image",
	Short: "Untar an image tree into the registry and sign it in place",
	Long: `extract-sign-image unpacks --filename into registry/{app} (refusing to
overwrite an existing app directory) and then runs the same sign-image flow.
If --app is omitted it defaults to the tar file's basename without
extension.`,
	Args: cobra.NoArgs,
	RunE: runExtractSignImage,
}

func init() {
	f := extractSignImageCmd.Flags()
	addSignImageFlags(f)
	f.StringVar(&extractSignImageFilename, "filename", "", "path to the image tar to extract (required)")
	for _, name := range []string{"registry", "reference", "vendor-prv", "filename"} {
		_ = extractSignImageCmd.MarkFlagRequired(name)
	}
}

func runExtractSignImage(cmd *cobra.Command, args []string) error {
	ref, err := ociref.ParseReference(signImageReference)
	if err != nil {
		return fmt.Errorf("parse reference: %w", err)
	}

	vendorPrv, err := readPrivateKey(signImageVendorPrv)
	if err != nil {
		return err
	}

	endorsement, err := buildEndorsement()
	if err != nil {
		return err
	}

	if err := signer.ExtractSignImage(signImageRegistry, extractSignImageFilename, signImageApp, ref, vendorPrv, endorsement); err != nil {
		return err
	}

	fmt.Println("image extracted and signed")
	return nil
}
