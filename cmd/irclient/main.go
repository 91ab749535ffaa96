// Command irclient is a thin CLI over the sync distribution client and the
// pull-and-unpack orchestrator.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagHost string
	flagTLS  bool
	flagApp  string
)

var rootCmd = &cobra.Command{
	Use:           "irclient",
	Short:         "Pull images from an OCI Distribution registry",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "localhost:5000", "registry host[:port], optionally scheme-prefixed")
	rootCmd.PersistentFlags().BoolVar(&flagTLS, "tls", false, "use https instead of http")
	rootCmd.PersistentFlags().StringVar(&flagApp, "app", "", "application name (required)")
	_ = rootCmd.MarkPersistentFlagRequired("app")

	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(manifestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
