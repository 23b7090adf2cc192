// Command cantonctl drives a Canton participant through its JSON and
// validator APIs: the cap-table demo, package upload, ledger queries and
// the explorer server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(os.Stdout, os.Stderr, os.Getenv).execute(ctx, nil)
	stop()
	// Cobra has already printed the error.
	if err != nil {
		os.Exit(1)
	}
}
