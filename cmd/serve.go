package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gfuzz/internal/server"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "serve selector and reentrancy analysis over http",
	Long:  ``,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := serveExec(cmd.Context()); err != nil {
			fmt.Printf("service err: %v", err)
		} else {
			fmt.Printf("service quit")
		}
	},
}

var ListenAddr string

func init() {
	serveCommand.Flags().StringVar(&ListenAddr, "addr", "", "listen address, overrides config")
}

func serveExec(ctx context.Context) error {
	if ListenAddr != "" {
		cfg.Server.Addr = ListenAddr
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := server.New(cfg)
	if err != nil {
		return err
	}
	return s.ListenAndServe(ctx)
}
