//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"
)

func TestInterruptContext(t *testing.T) {
	// Not parallel: the test signals its own process.

	t.Run("first signal cancels", func(t *testing.T) {
		ctx, stop := interruptContext(context.Background(), syscall.SIGUSR1)
		defer stop()

		if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
			t.Fatalf("Kill() error = %v", err)
		}

		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("context was not cancelled by the signal")
		}

		// The second signal reaches other handlers once the crawl context
		// has let go of it.
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGUSR1)
		defer signal.Stop(ch)

		if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
			t.Fatalf("Kill() error = %v", err)
		}
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatal("second signal was not delivered")
		}
	})

	t.Run("parent cancellation", func(t *testing.T) {
		parent, cancel := context.WithCancel(context.Background())
		ctx, stop := interruptContext(parent, syscall.SIGUSR1)
		defer stop()

		cancel()
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("context was not cancelled with its parent")
		}
		stop()
	})
}
