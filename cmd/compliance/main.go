// Command compliance verifies the compliance record store against YAML
// scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/compliance/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
