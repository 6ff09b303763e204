// Package main is the relaysync binary entry point.
package main

import (
	"os"

	"github.com/relaycrm/relaysync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
