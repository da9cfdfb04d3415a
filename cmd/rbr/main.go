package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/rbr-console/internal/cmd"
	"github.com/felixgeelhaar/rbr-console/internal/exitcode"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cmd.ExecuteContext(ctx)
	interrupted := ctx.Err() == context.Canceled
	stop()
	if err == nil {
		os.Exit(exitcode.Success)
	}

	if interrupted {
		fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
		os.Exit(exitcode.Interrupted)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitcode.DetermineExitCode(err))
}
