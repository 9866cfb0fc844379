package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aegyost/dictattack/internal/digest"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(digest.NewHasher(), os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()

	code := exitCode(err)
	if err != nil && (code == exitUsage || code == exitDigest) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code == exitUsage {
			fmt.Fprintln(os.Stderr, "Run 'dictattack --help' for usage.")
		}
	}
	os.Exit(code)
}
