package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ErrShutdownSignal is the cause of a context cancelled by SIGINT or SIGTERM.
var ErrShutdownSignal = errors.New("shutdown signal")

// SignalContext is cancelled on the first SIGINT or SIGTERM, with
// ErrShutdownSignal as its cause. A second signal while shutdown is still
// running exits the process immediately. stop releases the signal handler.
func SignalContext(logger *slog.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(context.Background())
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	released := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(released)
			cancel(nil)
		})
	}

	go func() {
		select {
		case sig := <-sigs:
			logger.Info("shutdown requested", "signal", sig.String())
			cancel(fmt.Errorf("%w: %s", ErrShutdownSignal, sig))
		case <-released:
			return
		}
		select {
		case sig := <-sigs:
			logger.Error("second signal during shutdown, exiting", "signal", sig.String())
			os.Exit(1)
		case <-released:
		}
	}()
	return ctx, stop
}
