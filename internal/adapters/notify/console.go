package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/engine"
	"github.com/alejandrodnm/polysniper/internal/ports"
)

// Console implementa ports.EventSink escribiendo una línea por evento, más
// los reports tabulares para el operador.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

var _ ports.EventSink = (*Console)(nil)

// Publish imprime el evento en una línea compacta.
func (c *Console) Publish(_ context.Context, ev domain.Event) error {
	now := ev.At.Format("15:04:05")
	name := domain.TruncateQuestion(ev.Question, ev.MarketID, 35)

	switch ev.Type {
	case domain.EventEntered:
		fmt.Fprintf(c.out, "[%s][%s] >> ENTRY %s %q @ %s x %s\n",
			now, ev.StrategyTag, name, ev.Outcome, ev.Price, ev.Shares)
	case domain.EventFilled:
		fmt.Fprintf(c.out, "[%s][%s] == FILLED %s %q @ %s x %s\n",
			now, ev.StrategyTag, name, ev.Outcome, ev.Price, ev.Shares)
	case domain.EventStoppedOut:
		fmt.Fprintf(c.out, "[%s][%s] !! STOP-LOSS %s @ %s  pnl %s\n",
			now, ev.StrategyTag, name, ev.Price, ev.PnL)
	case domain.EventTargetHit:
		fmt.Fprintf(c.out, "[%s][%s] ** TARGET %s @ %s  pnl %s\n",
			now, ev.StrategyTag, name, ev.Price, ev.PnL)
	case domain.EventEmergencyClosed:
		fmt.Fprintf(c.out, "[%s][%s] !! EMERGENCY CLOSE %s @ %s  pnl %s\n",
			now, ev.StrategyTag, name, ev.Price, ev.PnL)
	case domain.EventResolved:
		verdict := "LOST"
		if ev.Won {
			verdict = "WON"
		}
		fmt.Fprintf(c.out, "[%s][%s] $$ RESOLVED %s %q → %s  pnl %s\n",
			now, ev.StrategyTag, name, ev.Outcome, verdict, ev.PnL)
	case domain.EventForcedResolved:
		fmt.Fprintf(c.out, "[%s][%s] ?? FORCED %s %q — sin evidencia, excluido de stats\n",
			now, ev.StrategyTag, name, ev.Outcome)
	case domain.EventAborted:
		fmt.Fprintf(c.out, "[%s][%s] -- ABORTED %s (entrada sin llenar)\n",
			now, ev.StrategyTag, name)
	default:
		fmt.Fprintf(c.out, "[%s][%s] %s %s\n", now, ev.StrategyTag, ev.Type, name)
	}
	return nil
}

// PrintStatus imprime una fila por estrategia viva.
func (c *Console) PrintStatus(statuses []engine.InstanceStatus) {
	if len(statuses) == 0 {
		fmt.Fprintln(c.out, "\n  No strategies running.")
		return
	}

	fmt.Fprintf(c.out, "\n[%s] %d strategies\n", time.Now().Format("15:04:05"), len(statuses))

	table := tablewriter.NewWriter(c.out)
	table.Header("Tag", "Signal", "Series", "State", "Trades", "W/L", "Stop", "Forced", "PnL")

	for _, st := range statuses {
		state := "idle"
		if st.Position != nil {
			state = string(st.Position.State)
		}
		table.Append(
			st.Tag,
			st.Signal,
			st.Series,
			state,
			fmt.Sprintf("%d", st.Stats.TotalTrades),
			fmt.Sprintf("%d/%d", st.Stats.Wins, st.Stats.Losses),
			fmt.Sprintf("%d", st.Stats.Stopped),
			fmt.Sprintf("%d", st.Stats.Forced),
			fmt.Sprintf("$%s", st.Stats.TotalPnL.StringFixed(2)),
		)
	}
	table.Render()

	fmt.Fprintln(c.out, "  W/L excluye forced y aborted | PnL = realizado acumulado")
}

// PrintTrades imprime el ledger de una estrategia.
func (c *Console) PrintTrades(tag string, trades []domain.TradeRecord) {
	if len(trades) == 0 {
		fmt.Fprintf(c.out, "\n  No trades recorded for %q yet.\n", tag)
		return
	}

	fmt.Fprintf(c.out, "\n=== TRADES — %s (last %d) ===\n", tag, len(trades))

	table := tablewriter.NewWriter(c.out)
	table.Header("Closed", "Market", "Side", "Entry", "Exit", "Shares", "PnL", "Result")

	for _, t := range trades {
		result := string(t.Result)
		if t.Forced {
			result += " (forced)"
		}
		table.Append(
			t.ClosedAt.Format("01-02 15:04"),
			domain.TruncateQuestion(t.Question, t.MarketID, 32),
			t.Outcome,
			t.EntryPrice.StringFixed(3),
			t.ExitPrice.StringFixed(3),
			t.Shares.StringFixed(2),
			"$"+t.PnL.StringFixed(2),
			result,
		)
	}
	table.Render()
}

// PrintStoppedSummary imprime el resumen al parar una estrategia.
func (c *Console) PrintStoppedSummary(s domain.StoppedSummary) {
	fmt.Fprintf(c.out, "\n=== STOPPED — %s ===\n", s.Tag)
	fmt.Fprintf(c.out, "  Trades: %d  W/L: %d/%d  Stopped: %d  Forced: %d\n",
		s.Stats.TotalTrades, s.Stats.Wins, s.Stats.Losses, s.Stats.Stopped, s.Stats.Forced)
	fmt.Fprintf(c.out, "  PnL: $%s  Win rate: %.1f%%\n",
		s.Stats.TotalPnL.StringFixed(2), s.Stats.WinRate())

	for _, id := range s.CancelledIDs {
		fmt.Fprintf(c.out, "  Cancelled order: %s\n", id)
	}
	if s.OpenPosition != nil {
		p := s.OpenPosition
		fmt.Fprintf(c.out, "  !! OPEN POSITION kept: %s %q x %s @ %s — resume or close manually\n",
			domain.TruncateQuestion(p.Market.Question, p.Market.ID, 35),
			p.Outcome.Label, p.Shares, p.FillPrice)
	}
	fmt.Fprintln(c.out)
}
