// Command chronomap is a terminal viewer for the historical world map.
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"chronomap/internal/archive"
	"chronomap/internal/config"
	"chronomap/internal/geom"
	"chronomap/internal/logger"
	"chronomap/internal/mapstate"
	"chronomap/internal/metrics"
	"chronomap/internal/transport"
	"chronomap/internal/tui"
)

func main() {
	cfg := config.Load()

	// the TUI owns the terminal; logs go to a file or nowhere
	var logOut io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	lg := logger.Setup(logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Transport ─────────────────────────────────────────────────────
	var fetcher transport.Fetcher = transport.NewHTTPFetcher(cfg.APIURL, &http.Client{Timeout: cfg.HTTPTimeout})
	if rdb := transport.OpenRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB); rdb != nil {
		defer rdb.Close()
		fetcher = transport.NewRedisCache(fetcher, rdb, cfg.CacheTTL)
		lg.Info("redis response cache enabled", "addr", cfg.RedisAddr)
	}
	client := transport.NewClient(fetcher)

	// ── Store ─────────────────────────────────────────────────────────
	opts := []mapstate.Option{mapstate.WithLogger(lg), mapstate.WithMarkerLimit(cfg.MarkerLimit)}
	if d, ok := mapstate.ParseDimension(cfg.Dimension); ok {
		opts = append(opts, mapstate.WithActiveColor(d))
	} else {
		lg.Warn("unknown dimension, using ruler", "dimension", cfg.Dimension)
	}
	var db *archive.DB
	if cfg.ArchivePath != "" {
		var err error
		db, err = archive.Open(cfg.ArchivePath)
		if err != nil {
			log.Fatalf("open archive: %v", err)
		}
		defer db.Close()
		opts = append(opts, mapstate.WithArchive(db))
	}
	store := mapstate.New(client, opts...)

	if db != nil {
		n, err := store.PreloadArchive(ctx)
		if err != nil {
			lg.Warn("archive preload failed", "err", err)
		} else {
			lg.Info("archive preloaded", "years", n)
		}
	}

	// metadata may bundle geometry; a local file is the fallback
	if cfg.ProvincesPath != "" {
		features, err := geom.LoadFeatures(cfg.ProvincesPath)
		if err != nil {
			log.Fatalf("load territories: %v", err)
		}
		lg.Info("territories loaded", "path", cfg.ProvincesPath, "count", store.SetProvinces(features))
	}

	// ── Link state ────────────────────────────────────────────────────
	year := cfg.Year
	if len(os.Args) > 1 {
		q, err := url.ParseQuery(strings.TrimPrefix(os.Args[1], "?"))
		if err != nil {
			log.Fatalf("parse link: %v", err)
		}
		store.SetViewport(mapstate.DecodeViewport(q))
		y, ok, err := mapstate.DecodeYear(q)
		switch {
		case err != nil:
			log.Fatalf("parse link: %v", err)
		case ok:
			year = y
		}
	}

	// ── Metrics ───────────────────────────────────────────────────────
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Error("metrics server failed", "err", err)
			}
		}()
		defer srv.Close()
	}

	m := tui.New(store, tui.Options{Year: year, Context: ctx})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		slog.Error("chronomap exited", "err", err)
		log.Fatal(err)
	}
}
