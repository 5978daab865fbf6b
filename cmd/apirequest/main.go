package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fetchkit/go-apirequest/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := cli.Run(ctx, os.Args, os.Stdout, os.Stderr)

	// if app exited without error, return
	if err == nil {
		return
	}

	// the outcome of a failed call is already printed
	if !errors.Is(err, cli.ErrCallFailed) {
		fmt.Fprintf(os.Stderr, "exit error: %s\n", err.Error())
	}

	cancel()
	os.Exit(1)
}
