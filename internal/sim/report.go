package sim

import (
	"fmt"
	"strings"
	"time"

	"breakout-systemv1/internal/model"
)

// Summary aggregates the headline statistics of a completed run.
type Summary struct {
	InitialBalance float64                   `json:"initial_balance"`
	FinalBalance   float64                   `json:"final_balance"`
	GrossPnL       float64                   `json:"gross_pnl"`
	NetPnL         float64                   `json:"net_pnl"`
	TotalTrades    int                       `json:"total_trades"`
	Wins           int                       `json:"wins"`
	Losses         int                       `json:"losses"`
	WinRate        float64                   `json:"win_rate"` // [0,1]
	MaxDrawdownPct float64                   `json:"max_drawdown_pct"`
	AvgHold        time.Duration             `json:"avg_hold"`
	ByReason       map[model.CloseReason]int `json:"by_reason"`
	SkippedBars    int                       `json:"skipped_bars"`
}

// Summarize computes run statistics from the closed-trade ledger.
func Summarize(initial, final float64, trades []model.Trade, skipped []SkippedBar) Summary {
	s := Summary{
		InitialBalance: initial,
		FinalBalance:   final,
		ByReason:       make(map[model.CloseReason]int),
		SkippedBars:    len(skipped),
	}

	balance := initial
	peak := initial
	var holdTotal time.Duration

	for _, t := range trades {
		s.TotalTrades++
		s.GrossPnL += t.PnLGross
		s.NetPnL += t.PnLNet
		s.ByReason[t.Reason]++
		holdTotal += t.HoldDuration()

		if t.PnLNet > 0 {
			s.Wins++
		} else {
			s.Losses++
		}

		balance += t.PnLNet
		if balance > peak {
			peak = balance
		}
		if peak > 0 {
			dd := (peak - balance) / peak * 100
			if dd > s.MaxDrawdownPct {
				s.MaxDrawdownPct = dd
			}
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
		s.AvgHold = holdTotal / time.Duration(s.TotalTrades)
	}
	return s
}

// Render formats the summary as the familiar boxed report.
func (s Summary) Render() string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, "║  %-36s ║\n", fmt.Sprintf(format, args...))
	}
	b.WriteString("╔══════════════════════════════════════╗\n")
	b.WriteString("║          BACKTEST COMPLETE           ║\n")
	b.WriteString("╠══════════════════════════════════════╣\n")
	line("Trades:        %d", s.TotalTrades)
	line("Win rate:      %.1f%%", s.WinRate*100)
	line("Gross PnL:     %.4f", s.GrossPnL)
	line("Net PnL:       %.4f", s.NetPnL)
	line("Balance:       %.4f -> %.4f", s.InitialBalance, s.FinalBalance)
	line("Max drawdown:  %.2f%%", s.MaxDrawdownPct)
	line("Avg hold:      %s", s.AvgHold)
	line("Skipped bars:  %d", s.SkippedBars)
	for _, reason := range []model.CloseReason{
		model.CloseStopLoss, model.CloseTakeProfit, model.CloseTrailingStop,
		model.CloseRSIExit, model.CloseForced,
	} {
		if n := s.ByReason[reason]; n > 0 {
			line("  %-13s %d", reason+":", n)
		}
	}
	b.WriteString("╚══════════════════════════════════════╝")
	return b.String()
}
