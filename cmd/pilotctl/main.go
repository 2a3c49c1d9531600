// Pilotctl is the PathLight voice client. It uploads recorded utterances to
// the dispatch server, applies the returned pilot action locally and plays
// the spoken reply.
//
// Usage:
//
//	pilotctl send recording.m4a
//	pilotctl shell
//	pilotctl feedback list --limit 20
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
