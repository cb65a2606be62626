// Command shadowlogs indexes events emitted by replacement contract code
// while following a chain.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shadow-hq/shadowlogs/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "shadowlogs:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
