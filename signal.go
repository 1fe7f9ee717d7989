package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// interruptExitCode follows the shell convention of 128+SIGINT.
const interruptExitCode = 130

// exitProcess is replaced in tests.
var exitProcess = os.Exit

// withInterrupt returns a context that Ctrl-C or SIGTERM cancels. That aborts
// the mesh requests in flight before any output file is renamed into place.
// A second interrupt while they unwind exits with status 130 on the spot.
// stop releases the signal handlers.
func withInterrupt(parent context.Context, logger *slog.Logger) (ctx context.Context, stop func()) {
	ctx, stopNotify := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}

		if parent.Err() != nil {
			return
		}

		logger.Info("interrupted, aborting mesh requests")

		again := make(chan os.Signal, 1)
		signal.Notify(again, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(again)

		select {
		case sig := <-again:
			logger.Warn("interrupted twice, exiting without cleanup", slog.String("signal", sig.String()))
			exitProcess(interruptExitCode)
		case <-done:
		}
	}()

	return ctx, func() {
		close(done)
		stopNotify()
	}
}
