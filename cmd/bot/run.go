package main

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"marrow-bot/internal/ambient"
	"marrow-bot/internal/analytics"
	"marrow-bot/internal/bot"
	"marrow-bot/internal/config"
	"marrow-bot/internal/ledger"
	"marrow-bot/internal/llm"
	"marrow-bot/internal/logger"
	"marrow-bot/internal/memory"
	"marrow-bot/internal/metrics"
	"marrow-bot/internal/persona"
	"marrow-bot/internal/responder"
	"marrow-bot/internal/storage"
	"marrow-bot/internal/telegram"
)

func runBot(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New("marrow", cfg.LogLevel)

	store, closeStore, err := storage.Open(string(cfg.StoreDriver), cfg.DataDir, cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	profile, err := persona.LoadProfile(cfg.PersonaPath)
	if err != nil {
		return err
	}
	client, err := llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider), llm.Sampling{
		MaxTokens:   profile.Generation.MaxTokens,
		Temperature: profile.Generation.Temperature,
	})
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	participants, err := ledger.Open(store)
	if err != nil {
		return err
	}
	notes, err := persona.OpenNotes(store)
	if err != nil {
		return err
	}
	mem, err := memory.Open(store)
	if err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	handle := cfg.BotHandle
	if handle == "" {
		handle = api.Self.UserName
	}
	if handle == "" {
		handle = profile.Handle
	}
	log.Info().Str("handle", handle).Int64("chat_id", cfg.TelegramChatID).Str("provider", string(cfg.LLMProvider)).Msg("starting")

	channel := telegram.NewChannel(api, cfg.TelegramChatID)
	activity := ambient.NewActivity(time.Now().UTC())

	b := bot.New(bot.Deps{
		Handle:   handle,
		Ledger:   participants,
		Notes:    notes,
		Engine:   responder.New(profile, notes, mem, client, cfg.LLMTimeout, logger.Component(log, "responder")),
		Activity: activity,
		Out:      channel,
		Log:      logger.Component(log, "bot"),
	})

	sched, err := ambient.New(channel, participants, activity, profile, store, ambient.Settings{
		AdCheckInterval:        cfg.AdCheckInterval,
		AdCooldown:             cfg.AdCooldown,
		LurkerInterval:         cfg.LurkerInterval,
		SilenceInterval:        cfg.SilenceInterval,
		SilenceThreshold:       cfg.SilenceThreshold,
		OccupancyInterval:      cfg.OccupancyInterval,
		OccupancyEmptyInterval: cfg.OccupancyEmptyInterval,
		ReportSpec:             cfg.ReportSpec,
	}, logger.Component(log, "ambient"))
	if err != nil {
		return err
	}
	reportLog := logger.Component(log, "report")
	sched.SetReportFunction(func(ctx context.Context) error {
		stats := analytics.AnalyzeDaily(mem.Triggers(), time.Now().UTC().AddDate(0, 0, -1))
		reportLog.Info().
			Str("date", stats.Date).
			Int("replies", stats.TotalReplies).
			Int("participants", stats.UniqueParticipants).
			Msg(stats.Summary())
		return nil
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start ambient routines: %w", err)
	}
	defer sched.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	listener := telegram.NewListener(api, cfg.TelegramChatID, b, logger.Component(log, "telegram"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return listener.Run(gctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.MetricsAddr, logger.Component(log, "metrics"))
		})
	}
	err = g.Wait()
	log.Info().Msg("shutting down")
	return err
}
