package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polysniper/config"
	"github.com/alejandrodnm/polysniper/internal/adapters/binance"
	"github.com/alejandrodnm/polysniper/internal/adapters/notify"
	"github.com/alejandrodnm/polysniper/internal/adapters/polymarket"
	"github.com/alejandrodnm/polysniper/internal/adapters/storage"
	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/engine"
	entrysignal "github.com/alejandrodnm/polysniper/internal/signal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	report := flag.Bool("report", false, "print trade ledger per strategy and exit")
	statusEvery := flag.Duration("status-every", time.Minute, "interval between status tables (0 disables)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	console := notify.NewConsole()

	if *report {
		runReport(context.Background(), cfg, store, console)
		return
	}

	if cfg.API.PrivateKey == "" {
		slog.Error("POLY_PRIVATE_KEY not set — cannot trade")
		os.Exit(1)
	}
	if len(cfg.Strategies) == 0 {
		slog.Error("no strategies configured", "config", *configPath)
		os.Exit(1)
	}

	auth, err := polymarket.NewAuthClient(cfg.API.CLOBBase, cfg.API.GammaBase, cfg.API.PrivateKey)
	if err != nil {
		slog.Error("failed to build trading client", "err", err)
		os.Exit(1)
	}
	gateway := polymarket.NewGateway(auth)
	discovery := polymarket.NewDiscovery(auth.Client)

	eng := engine.New(gateway, discovery, store, console,
		reconcilerFactory(cfg, discovery), cfg.TickInterval())
	registerSignals(eng, cfg, auth, gateway)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("polysniper starting",
		"config", *configPath,
		"tick", cfg.TickInterval(),
		"strategies", len(cfg.Strategies),
		"wallet", auth.Address(),
	)

	for _, sc := range cfg.Strategies {
		if err := eng.StartStrategy(ctx, sc.Domain()); err != nil {
			slog.Error("failed to start strategy", "tag", sc.Tag, "err", err)
			os.Exit(1)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	if *statusEvery > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(*statusEvery)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					console.PrintStatus(eng.Status())
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("polysniper stopped cleanly")
}

// reconcilerFactory construye el reconciler de cada estrategia con su feed de
// Binance como evidencia de referencia.
func reconcilerFactory(cfg *config.Config, discovery *polymarket.Discovery) engine.ReconcilerFactory {
	return func(sc domain.StrategyConfig) *engine.Reconciler {
		feed := binance.NewFeed(cfg.API.BinanceBase, sc.Symbol, sc.Interval)
		r := engine.NewReconciler(discovery, feed)
		r.InitialDelay = time.Duration(cfg.Engine.ResolutionDelaySeconds) * time.Second
		r.ReferenceGrace = time.Duration(cfg.Engine.ReferenceGraceSeconds) * time.Second
		r.MaxWait = time.Duration(cfg.Engine.MaxWaitSeconds) * time.Second
		return r
	}
}

// registerSignals da de alta las factories de entry signals disponibles.
func registerSignals(eng *engine.Engine, cfg *config.Config, auth *polymarket.AuthClient, gateway *polymarket.Gateway) {
	eng.RegisterSignal("momentum", func(sc domain.StrategyConfig) (engine.EntrySignal, error) {
		feed := binance.NewFeed(cfg.API.BinanceBase, sc.Symbol, sc.Interval)
		return entrysignal.NewMomentum(feed, gateway, sc.Symbol, sc), nil
	})
	eng.RegisterSignal("leader", func(sc domain.StrategyConfig) (engine.EntrySignal, error) {
		return entrysignal.NewLeader(gateway, sc), nil
	})
	eng.RegisterSignal("copytrade", func(sc domain.StrategyConfig) (engine.EntrySignal, error) {
		tape := polymarket.NewTape(auth.Client, cfg.API.DataBase)
		return entrysignal.NewCopyTrade(tape), nil
	})
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
