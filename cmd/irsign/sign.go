package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/islet-oci/imagereg/internal/signer"
)

var (
	signKey       string
	signFile      string
	signSignature string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a file's streamed SHA-384 digest with an ECDSA P-384 private key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := readPrivateKey(signKey)
		if err != nil {
			return err
		}
		f, err := os.Open(signFile)
		if err != nil {
			return err
		}
		defer f.Close()

		sig, err := signer.SignReader(key, f)
		if err != nil {
			return err
		}
		return os.WriteFile(signSignature, sig, 0o644)
	},
}

func init() {
	signCmd.Flags().StringVar(&signKey, "key", "", "path to the private key (required)")
	signCmd.Flags().StringVar(&signFile, "file", "", "path to the file to sign (required)")
	signCmd.Flags().StringVar(&signSignature, "signature", "", "path to write the DER signature (required)")
	for _, f := range []string{"key", "file", "signature"} {
		_ = signCmd.MarkFlagRequired(f)
	}
}

var (
	verifyKey       string
	verifyFile      string
	verifySignature string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a file's streamed SHA-384 digest against an ECDSA P-384 signature",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := readPublicKey(verifyKey)
		if err != nil {
			return err
		}
		sig, err := os.ReadFile(verifySignature)
		if err != nil {
			return err
		}
		f, err := os.Open(verifyFile)
		if err != nil {
			return err
		}
		defer f.Close()

		return signer.VerifyReader(key, f, sig)
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyKey, "key", "", "path to the public key (required)")
	verifyCmd.Flags().StringVar(&verifyFile, "file", "", "path to the signed file (required)")
	verifyCmd.Flags().StringVar(&verifySignature, "signature", "", "path to the DER signature (required)")
	for _, f := range []string{"key", "file", "signature"} {
		_ = verifyCmd.MarkFlagRequired(f)
	}
}
