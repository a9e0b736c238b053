package common

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT}

// Interrupted returns a channel receiving interrupt and termination signals.
func Interrupted() <-chan os.Signal {
	interrupt := make(chan os.Signal, 2)
	signal.Notify(interrupt, interruptSignals...)
	return interrupt
}

// InterruptContext is canceled on the first interrupt or termination signal.
// The returned stop releases the signal handler.
func InterruptContext(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, interruptSignals...)
}
