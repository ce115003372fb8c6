package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/me/libra/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cli.ErrorMessage(err))
		stop()
		os.Exit(1)
	}
}
