package main

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/polysniper/config"
	"github.com/alejandrodnm/polysniper/internal/adapters/notify"
	"github.com/alejandrodnm/polysniper/internal/adapters/storage"
	"github.com/alejandrodnm/polysniper/internal/domain"
)

const reportTradeLimit = 50

// runReport imprime el ledger de cada estrategia configurada y sale. No toca
// el gateway, solo lee la base de datos local.
func runReport(ctx context.Context, cfg *config.Config, store *storage.SQLiteStore, console *notify.Console) {
	if len(cfg.Strategies) == 0 {
		slog.Warn("no strategies in config — nothing to report")
		return
	}

	for _, sc := range cfg.Strategies {
		trades, err := store.Trades(ctx, sc.Tag, reportTradeLimit)
		if err != nil {
			slog.Error("could not read ledger", "tag", sc.Tag, "err", err)
			continue
		}
		console.PrintTrades(sc.Tag, trades)

		snap, ok, err := store.LoadSnapshot(ctx, sc.Tag)
		if err != nil {
			slog.Warn("could not read snapshot", "tag", sc.Tag, "err", err)
			continue
		}
		if ok {
			summary := domain.StoppedSummary{Tag: snap.Tag, Stats: snap.Stats}
			for _, p := range snap.Positions {
				if !p.Terminal() {
					summary.OpenPosition = p
					break
				}
			}
			console.PrintStoppedSummary(summary)
		}
	}
}
