// Command registryd serves a registry root over the pull-only OCI
// Distribution surface, over plain TCP or server-only TLS. It refuses to
// start in RA-TLS mode, since it has no ClientTokenVerifier to supply.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/islet-oci/imagereg/internal/distsrv"
	"github.com/islet-oci/imagereg/internal/regstore"
	"github.com/islet-oci/imagereg/internal/servertls"
	"github.com/islet-oci/imagereg/pkg/obslog"
)

var (
	flagAddr     string
	flagRoot     string
	flagCertFile string
	flagKeyFile  string
	flagRaTLS    bool
)

var rootCmd = &cobra.Command{
	Use:   "registryd",
	Short: "Serve a registry root over the pull-only OCI Distribution API",
	Long: `registryd loads a registry directory once at startup and serves it
read-only over HTTP(S): GET /v2/, tag listing, manifests and blobs, with
byte-range streaming and Docker-Content-Digest announcement.

Every application under the registry root is loaded independently; a
malformed application is logged and skipped, it does not abort startup.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&flagAddr, "addr", ":5000", "address to listen on")
	rootCmd.Flags().StringVar(&flagRoot, "root", "", "registry root directory (required)")
	rootCmd.Flags().StringVar(&flagCertFile, "cert", "", "PEM certificate chain (enables TLS)")
	rootCmd.Flags().StringVar(&flagKeyFile, "key", "", "PKCS#8 PEM private key (enables TLS)")
	rootCmd.Flags().BoolVar(&flagRaTLS, "ra-tls", false, "select RA-TLS; always refused at startup, as this binary has no ClientTokenVerifier")
	_ = rootCmd.MarkFlagRequired("root")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	reg, err := regstore.Import(flagRoot)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	tlsCfg, err := buildTLSConfig()
	if err != nil {
		return err
	}

	acceptor, err := servertls.New(flagAddr, tlsCfg)
	if err != nil {
		return fmt.Errorf("bind listener: %w", err)
	}

	handler := distsrv.NewRouter(reg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	obslog.Info("registryd listening on %s (mode=%d)", flagAddr, tlsCfg.Mode)
	if err := acceptor.Serve(ctx, handler); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// buildTLSConfig turns the command-line flags into an immutable
// servertls.Config built once at startup; nothing mutates it afterward.
func buildTLSConfig() (servertls.Config, error) {
	if flagCertFile == "" && flagKeyFile == "" {
		if flagRaTLS {
			return servertls.Config{}, fmt.Errorf("--ra-tls requires --cert and --key")
		}
		return servertls.Config{Mode: servertls.NoTLS}, nil
	}

	certPEM, err := os.ReadFile(flagCertFile)
	if err != nil {
		return servertls.Config{}, fmt.Errorf("read cert: %w", err)
	}
	keyPEM, err := os.ReadFile(flagKeyFile)
	if err != nil {
		return servertls.Config{}, fmt.Errorf("read key: %w", err)
	}

	if flagRaTLS {
		// The attestation-token verifier comes from the deployment, not
		// this binary: RA-TLS can only be selected by an embedder that
		// builds its own servertls.Config with a real ClientTokenVerifier.
		return servertls.Config{}, fmt.Errorf("--ra-tls requires a ClientTokenVerifier wired in by the embedding deployment")
	}

	return servertls.Config{Mode: servertls.TLS, CertPEM: certPEM, KeyPEM: keyPEM}, nil
}
