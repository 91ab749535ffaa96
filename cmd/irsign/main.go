// Command irsign implements the CLI surface of the two-level vendor/CA
// image-signing chain.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "irsign",
	Short:         "Sign and verify OCI images with a two-level vendor/CA ECDSA chain",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(genKeyCmd)
	rootCmd.AddCommand(extractPublicCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(signConfigCmd)
	rootCmd.AddCommand(rehashFileCmd)
	rootCmd.AddCommand(signImageCmd)
	rootCmd.AddCommand(extractSignImageCmd)
	rootCmd.AddCommand(verifyImageCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
