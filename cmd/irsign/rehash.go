package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/internal/signer"
)

var (
	rehashRegistry string
	rehashApp      string
	rehashDigest   string
)

var rehashFileCmd = &cobra.Command{
	Use:   "rehash-file",
	Short: "Recompute a blob's digest and rename it on disk if it changed",
	Args:  cobra.NoArgs,
	RunE:  runRehashFile,
}

func init() {
	f := rehashFileCmd.Flags()
	f.StringVar(&rehashRegistry, "registry", "", "registry root (required)")
	f.StringVar(&rehashApp, "app", "", "application name (required)")
	f.StringVar(&rehashDigest, "digest", "", "digest of the file to rehash (required)")
	for _, name := range []string{"registry", "app", "digest"} {
		_ = rehashFileCmd.MarkFlagRequired(name)
	}
}

func runRehashFile(cmd *cobra.Command, args []string) error {
	d, err := ociref.ParseDigest(rehashDigest)
	if err != nil {
		return fmt.Errorf("parse digest: %w", err)
	}

	paths := signer.AppPaths{Registry: rehashRegistry, App: rehashApp}
	newDigest, _, changed, err := signer.Rehash(paths, d)
	if err != nil {
		return err
	}
	if changed {
		fmt.Printf("rehashed to: %s\n", newDigest)
	} else {
		fmt.Println("file does not require renaming")
	}
	return nil
}
