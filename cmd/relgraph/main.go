// Command relgraph inspects relationship schemas and replays relationship
// operations against an in-memory graph.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/syssam/relgraph/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
