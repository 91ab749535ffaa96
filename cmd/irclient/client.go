package main

import (
	"fmt"

	"github.com/islet-oci/imagereg/internal/regclient"
)

// newClient builds a blocking regclient.Client from the root persistent
// flags. The config value is built fresh for each invocation, never shared
// as a mutable global.
func newClient() (*regclient.Client, error) {
	mode := regclient.ModeNoTLS
	if flagTLS {
		mode = regclient.ModeTLS
	}
	client, err := regclient.NewClient(regclient.Config{Host: flagHost, Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("build client: %w", err)
	}
	return client, nil
}
