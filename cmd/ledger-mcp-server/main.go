package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"marrow-bot/internal/config"
	"marrow-bot/internal/logger"
	"marrow-bot/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadTool()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// stdout carries the MCP protocol
	log := logger.NewWithWriter(os.Stderr, "marrow-ledger-mcp", cfg.LogLevel)

	store, closeStore, err := storage.Open(string(cfg.StoreDriver), cfg.DataDir, cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "marrow-ledger-mcp",
		Version: "1.0.0",
	}, nil)
	register(server, &LedgerServer{store: store})
	log.Info().Str("driver", string(cfg.StoreDriver)).Msg("serving ledger tools on stdin/stdout")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil {
		log.Error().Err(err).Msg("ledger MCP server failed")
	}
}

func register(server *mcp.Server, s *LedgerServer) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_participant",
		Description: "Returns the ledger record, persona note and reply count for one participant",
	}, s.GetParticipant)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_lurkers",
		Description: "Lists participants who came back more than once and never spoke",
	}, s.ListLurkers)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recent_triggers",
		Description: "Returns the most recent replies from the trigger log, newest first",
	}, s.RecentTriggers)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "daily_stats",
		Description: "Summarizes replies for one UTC day",
	}, s.DailyStats)
}
