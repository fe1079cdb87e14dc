// Command vtrctl is the operator CLI for expiry rules and test records.
package main

import (
	"os"

	"github.com/turtacn/vehicle-test-records/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	// cli.Execute has already printed the error.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
