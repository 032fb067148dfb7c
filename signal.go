package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context that cancels on the first SIGINT/SIGTERM
// and force-exits on the second, so a hung transfer can still be abandoned.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("received signal, cancelling transfers",
				slog.String("signal", sig.String()),
			)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit",
				slog.String("signal", sig.String()),
			)
			os.Exit(exitCancelled)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}

// canceller is implemented by every transfer operation.
type canceller interface {
	Cancel()
}

// cancelOnDone calls Cancel on each op once ctx is done. The returned stop
// function releases the watcher and must be called when the ops finish.
func cancelOnDone(ctx context.Context, ops ...canceller) (stop func()) {
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			for _, op := range ops {
				op.Cancel()
			}
		case <-done:
		}
	}()

	return func() { close(done) }
}
