// Package main is the entry point for the minisc CLI.
//
// minisc provisions a minimal Kubernetes cluster (one kubeadm head node and
// a pool of workers) on AWS EC2 or Azure, and tears it down again by
// cluster tag.
//
// Commands: deploy, destroy, info, helm, serve, keygen, version.
//
// For detailed usage information, run:
//
//	minisc --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/minisc/minisc/cmd/minisc/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
