// Package main provides the entry point for the nycingest CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Aman-CERP/nycingest/cmd/nycingest/cmd"
	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprint(os.Stderr, ingesterr.FormatForCLI(err))
		os.Exit(1)
	}
}
