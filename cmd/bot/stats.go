package main

import (
	"fmt"
	"io"
	"time"

	"marrow-bot/internal/analytics"
	"marrow-bot/internal/config"
	"marrow-bot/internal/memory"
	"marrow-bot/internal/storage"
)

func runStats(date string, w io.Writer) error {
	cfg, err := config.LoadTool()
	if err != nil {
		return err
	}
	store, closeStore, err := storage.Open(string(cfg.StoreDriver), cfg.DataDir, cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()
	return printStats(store, date, time.Now().UTC(), w)
}

func printStats(store storage.Store, date string, now time.Time, w io.Writer) error {
	day := now
	if date != "" {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", date, err)
		}
		day = d
	}
	mem, err := memory.Open(store)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, analytics.AnalyzeDaily(mem.Triggers(), day).Summary())
	return err
}
