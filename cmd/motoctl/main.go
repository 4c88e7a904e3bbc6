package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var Version = "dev"

func newRootCmd(open connector) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "motoctl",
		Short:         "motoctl - служебные команды mototaxi-backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(adminTokenCmd(open))
	rootCmd.AddCommand(createAdminCmd(open))
	rootCmd.AddCommand(migrateCmd(open))
	rootCmd.AddCommand(expirePackagesCmd(open))
	return rootCmd
}

func main() {
	rootCmd := newRootCmd(connect)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
