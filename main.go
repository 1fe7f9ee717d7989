package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

func main() {
	ctx, stop := withInterrupt(context.Background(), slog.Default())

	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		exitOnError(err)
	}
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
