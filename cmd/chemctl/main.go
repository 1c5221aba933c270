// Package main provides the entry point of chemctl, the chemical inventory client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/erp/chemstock/internal/interfaces/cli"
)

// Version information (populated at build time)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	cli.Version, cli.BuildTime, cli.GitCommit = version, buildTime, gitCommit

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], cli.Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
	stop()
	os.Exit(code)
}
