// Command bagbrowser caches storage-service bag manifests in SQLite and
// serves a browse API over them.
package main

import (
	"fmt"
	"os"

	"github.com/bagbrowser/bagbrowser/internal/cli"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cli.Version, cli.Commit = version, commit
	if err := cli.Run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
