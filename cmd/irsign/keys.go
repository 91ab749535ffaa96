package main

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/islet-oci/imagereg/internal/signer"
)

var genKeyOutput string

var genKeyCmd = &cobra.Command{
	Use:   "gen-key",
	Short: "Generate an ECDSA P-384 private key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := signer.GenerateKey()
		if err != nil {
			return err
		}
		der, err := signer.ExportPrivateKey(key)
		if err != nil {
			return err
		}
		return os.WriteFile(genKeyOutput, der, 0o600)
	},
}

func init() {
	genKeyCmd.Flags().StringVar(&genKeyOutput, "output", "", "path to write the SEC1 DER private key (required)")
	_ = genKeyCmd.MarkFlagRequired("output")
}

var (
	extractPublicInput  string
	extractPublicOutput string
)

var extractPublicCmd = &cobra.Command{
	Use:   "extract-public",
	Short: "Extract the SPKI DER public key from a private key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := readPrivateKey(extractPublicInput)
		if err != nil {
			return err
		}
		der, err := signer.ExportPublicKey(&key.PublicKey)
		if err != nil {
			return err
		}
		return os.WriteFile(extractPublicOutput, der, 0o644)
	},
}

func init() {
	extractPublicCmd.Flags().StringVar(&extractPublicInput, "input", "", "path to the SEC1 DER private key (required)")
	extractPublicCmd.Flags().StringVar(&extractPublicOutput, "output", "", "path to write the SPKI DER public key (required)")
	_ = extractPublicCmd.MarkFlagRequired("input")
	_ = extractPublicCmd.MarkFlagRequired("output")
}

func readPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	der, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", path, err)
	}
	return signer.ImportPrivateKey(der)
}

func readPublicKey(path string) (*ecdsa.PublicKey, error) {
	der, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key %s: %w", path, err)
	}
	return signer.ImportPublicKey(der)
}
