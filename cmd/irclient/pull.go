package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/islet-oci/imagereg/internal/ociref"
	"github.com/islet-oci/imagereg/internal/orchestrator"
)

var (
	pullDest string
	pullTemp string
)

var pullCmd = &cobra.Command{
	Use:   "pull REFERENCE",
	Short: "Pull a manifest, its config and every layer, and unpack to a root directory",
	Long: `pull resolves REFERENCE (a tag or a digest) against --app, downloads the
config blob and every layer in manifest order, and unpacks each layer onto
--dest using the layer unpacker. If any layer fails, pull
stops immediately and leaves --dest in its partially-mutated state.`,
	Args: cobra.ExactArgs(1),
	RunE: runPull,
}

func init() {
	pullCmd.Flags().StringVar(&pullDest, "dest", "", "destination root to unpack into (required)")
	pullCmd.Flags().StringVar(&pullTemp, "temp", "", "scratch directory for downloaded layer files (defaults to a new directory under the system temp dir, removed afterwards)")
	_ = pullCmd.MarkFlagRequired("dest")
}

func runPull(cmd *cobra.Command, args []string) error {
	ref, err := ociref.ParseReference(args[0])
	if err != nil {
		return fmt.Errorf("parse reference: %w", err)
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	temp := pullTemp
	if temp == "" {
		t, err := os.MkdirTemp("", "irclient-pull-")
		if err != nil {
			return fmt.Errorf("create temp dir: %w", err)
		}
		defer os.RemoveAll(t)
		temp = t
	}

	if err := orchestrator.PullAndUnpack(context.Background(), client, flagApp, ref, pullDest, temp); err != nil {
		return fmt.Errorf("pull and unpack: %w", err)
	}

	fmt.Printf("pulled %s/%s into %s\n", flagApp, ref, pullDest)
	return nil
}
