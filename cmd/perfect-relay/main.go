package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("perfect-relay"),
		kong.Description("Relays Perfect Pay webhooks to n8n and escalates unpaid PIX orders."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "perfect-relay: %v\n", err)
		kctx.Exit(1)
	}
}
