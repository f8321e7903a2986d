package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext is cancelled on SIGINT or SIGTERM
func shutdownContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
