package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/islet-oci/imagereg/internal/ociref"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest REFERENCE",
	Short: "Fetch and print a manifest or index as JSON, with its verified digest",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifest,
}

func runManifest(cmd *cobra.Command, args []string) error {
	ref, err := ociref.ParseReference(args[0])
	if err != nil {
		return fmt.Errorf("parse reference: %w", err)
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	result, err := client.GetManifest(context.Background(), flagApp, ref)
	if err != nil {
		return fmt.Errorf("get manifest: %w", err)
	}

	out, err := json.MarshalIndent(result.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\n# digest: %s\n", out, result.Digest)
	return nil
}
