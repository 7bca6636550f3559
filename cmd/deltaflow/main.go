package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/deltaflow/deltaflow/internal/config"
	"github.com/deltaflow/deltaflow/internal/function"
	"github.com/deltaflow/deltaflow/internal/ingest"
	"github.com/deltaflow/deltaflow/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	// Credentials (store passwords, broker DSNs) come from the environment;
	// a local .env file is honored when present.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("deltaflow starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"store_backend", cfg.Store.Backend,
		"ingest_sources", len(cfg.Ingest),
		"functions", len(cfg.Functions),
		"poll_interval", cfg.PollInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.Open(cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Store.Backend, "err", err)
		os.Exit(1)
	}
	if closer, ok := db.(io.Closer); ok {
		defer closer.Close()
	}

	// Watch the config file. Running functions keep their startup config;
	// the reload is logged so the operator knows a restart applies it.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Info("config changed on disk — restart to apply",
				"functions", len(updated.Functions))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	var wg sync.WaitGroup

	// Start ingest sources.
	for _, src := range cfg.Ingest {
		source, err := ingest.New(src, db)
		if err != nil {
			slog.Error("skipping source — could not build ingest", "source", src.ID, "err", err)
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := source.Run(ctx); err != nil {
				slog.Error("ingest source exited", "source", id, "err", err)
			}
		}(src.ID)
		slog.Info("registered ingest source", "id", src.ID, "type", src.Type)
	}

	// Start function units, each anchored at startup time.
	now := time.Now()
	started := 0
	for _, fn := range cfg.Functions {
		unit, err := function.New(fn, db, now)
		if err != nil {
			slog.Error("skipping function — could not build unit", "function", fn.ID, "err", err)
			continue
		}
		wg.Add(1)
		go func(u *function.Unit) {
			defer wg.Done()
			u.Run(ctx, cfg.PollInterval)
		}(unit)
		started++
	}

	if started == 0 {
		slog.Warn("no functions configured — deltaflow will idle")
	}

	<-ctx.Done()
	slog.Info("deltaflow shutting down")
	wg.Wait()
	slog.Info("deltaflow shutdown complete")
}
