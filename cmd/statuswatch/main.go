// Command statuswatch keeps a live view of team resource status, over the push
// channel when it is available and by polling the API otherwise.
package main

import (
	"fmt"
	"os"

	"github.com/syntrixbase/statussync/cmd/statuswatch/cmd"
)

// Version information (set by ldflags during build)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	cmd.SetVersionInfo(Version, GitCommit)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
