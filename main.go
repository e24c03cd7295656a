package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/martinsuchenak/fmcsweep/cmd/cleanup"
	"github.com/martinsuchenak/fmcsweep/cmd/history"
	"github.com/martinsuchenak/fmcsweep/cmd/inventory"
	"github.com/martinsuchenak/fmcsweep/cmd/restore"
	"github.com/martinsuchenak/fmcsweep/cmd/version"
	"github.com/paularlott/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cli.Command{
		Name:        "fmcsweep",
		Version:     version.Version,
		Usage:       "Clean up unused network objects on a firewall management controller",
		Description: "Back up and delete unused networks, ranges, hosts and groups, and restore them from the backups",
		Commands: []*cli.Command{
			cleanup.Command(),
			restore.Command(),
			inventory.Command(),
			history.Command(),
			version.Command(),
		},
	}

	if err := root.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
