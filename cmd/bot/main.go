package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: .env file not found: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the chat and start the persona",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}

	var date string
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print reply statistics for one day (UTC)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(date, cmd.OutOrStdout())
		},
	}
	statsCmd.Flags().StringVarP(&date, "date", "d", "", "Day to report, YYYY-MM-DD (default today)")

	rootCmd := &cobra.Command{
		Use:          "marrow",
		Short:        "Chat persona that watches, remembers and replies",
		SilenceUsage: true,
		RunE:         runCmd.RunE,
	}
	rootCmd.AddCommand(runCmd, statsCmd)
	return rootCmd
}
