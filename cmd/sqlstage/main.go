// Package main provides the sqlstage command.
package main

import (
	"os"

	"github.com/leapstack-labs/sqlstage/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
