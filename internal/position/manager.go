// Package position owns the position lifecycle for a single instrument:
// entry fills, exit-condition evaluation, and realized-PnL accounting.
//
// The Manager is a two-state machine (FLAT, OPEN) holding at most one open
// position at any time. Entries fill at the NEXT bar's open — never at the
// signal bar's close — to avoid look-ahead bias. Exit conditions are
// evaluated every bar in a fixed, worst-case-first order: stop-loss,
// take-profit, trailing-stop, RSI-exit.
package position

import (
	"log"

	"breakout-systemv1/internal/model"
	"breakout-systemv1/internal/strategy"
)

// pendingEntry is an armed entry waiting for the next bar's open.
type pendingEntry struct {
	side       model.Side
	confidence float64
}

// Manager owns the zero-or-one open position of a single instrument.
// Single-goroutine usage: the simulation driver is the only caller, and no
// other component may read or write the position mid-evaluation.
type Manager struct {
	params strategy.Params

	pos      *model.Position // nil = FLAT
	pending  *pendingEntry
	lastSeen float64 // last known valid close, for forced/degraded evaluation
}

// NewManager creates a Manager with validated parameters.
func NewManager(params strategy.Params) *Manager {
	return &Manager{params: params}
}

// State returns the read-only position view the strategy consumes.
func (m *Manager) State() strategy.PositionState {
	if m.pos == nil {
		return strategy.PositionState{}
	}
	return strategy.PositionState{
		Open:       true,
		Side:       m.pos.Side,
		Profitable: m.pos.UnrealizedPnL(m.lastSeen) > 0,
	}
}

// Position returns the open position, or nil when FLAT.
func (m *Manager) Position() *model.Position { return m.pos }

// OnBar advances the state machine by one bar. Evaluation order is fixed:
//
//  1. fill a pending entry at this bar's open
//  2. stop-loss → take-profit → trailing-stop → RSI-exit
//  3. if still FLAT, arm a new entry from a qualifying signal
//
// Returns the Trade if a position closed on this bar, else nil.
func (m *Manager) OnBar(candle model.Candle, snap model.IndicatorSnapshot, sig model.Signal) *model.Trade {
	if m.pending != nil && m.pos == nil {
		m.open(candle, snap)
	}

	var trade *model.Trade
	if m.pos != nil {
		trade = m.evaluateExits(candle, snap, sig)
	}

	m.lastSeen = candle.Close

	// A new entry signal while OPEN is ignored — never queued, never an
	// override. Only a FLAT manager arms an entry.
	if m.pos == nil && sig.Actionable() && sig.Confidence >= m.params.MinConfidence {
		m.pending = &pendingEntry{
			side:       sideOf(sig.Action),
			confidence: sig.Confidence,
		}
	}

	return trade
}

// OnDegradedBar evaluates exit conditions when the current bar was skipped
// for signal purposes (unusable data). Risk management must not silently
// pause, so stops are still checked against the last known valid price.
func (m *Manager) OnDegradedBar(ts model.Candle) *model.Trade {
	if m.pos == nil || m.lastSeen == 0 {
		return nil
	}
	synthetic := model.Candle{
		Symbol:   m.pos.Symbol,
		Exchange: m.pos.Exchange,
		TS:       ts.TS,
		Open:     m.lastSeen,
		High:     m.lastSeen,
		Low:      m.lastSeen,
		Close:    m.lastSeen,
	}
	// No snapshot and no advisory on a degraded bar: trailing ratchet and
	// RSI exit are skipped, hard stops still apply.
	return m.evaluateExits(synthetic, model.IndicatorSnapshot{}, model.Signal{Action: model.ActionWait})
}

// ForceClose liquidates any open position at the last available close.
// Called by the driver at end of data. A still-armed pending entry is
// discarded — it never became a position.
func (m *Manager) ForceClose(ts model.Candle) *model.Trade {
	m.pending = nil
	if m.pos == nil {
		return nil
	}
	price := ts.Close
	if price == 0 {
		price = m.lastSeen
	}
	return m.close(price, ts, model.CloseForced)
}

// open fills the pending entry at this bar's open price.
func (m *Manager) open(candle model.Candle, snap model.IndicatorSnapshot) {
	p := &m.params
	entry := candle.Open
	side := m.pending.side
	m.pending = nil

	// Stop distance: ATR-scaled, floored at the minimum percentage of price.
	dist := entry * p.MinStopPct / 100
	if snap.Ready {
		if d := snap.ATR * p.ATRMultiplier; d > dist {
			dist = d
		}
	}

	pos := &model.Position{
		Symbol:     candle.Symbol,
		Exchange:   candle.Exchange,
		Side:       side,
		EntryPrice: entry,
		Size:       p.PositionSize,
		OpenedAt:   candle.TS,
		Status:     model.PositionOpen,
	}
	if side == model.SideLong {
		pos.StopLoss = entry - dist
		pos.TakeProfit = entry + dist*p.RiskRewardRatio
	} else {
		pos.StopLoss = entry + dist
		pos.TakeProfit = entry - dist*p.RiskRewardRatio
	}
	m.pos = pos

	log.Printf("[position] open %s %s @ %.4f stop=%.4f tp=%.4f size=%g",
		side, pos.Key(), entry, pos.StopLoss, pos.TakeProfit, pos.Size)
}

// evaluateExits applies the fixed worst-case-first exit ordering for one bar.
func (m *Manager) evaluateExits(candle model.Candle, snap model.IndicatorSnapshot, sig model.Signal) *model.Trade {
	pos := m.pos
	long := pos.Side == model.SideLong

	// 1. Stop-loss — checked first so a bar that spans both stop and target
	// resolves to the worst case, never ambiguously.
	if (long && candle.Low <= pos.StopLoss) || (!long && candle.High >= pos.StopLoss) {
		return m.close(pos.StopLoss, candle, model.CloseStopLoss)
	}

	// 2. Take-profit.
	if (long && candle.High >= pos.TakeProfit) || (!long && candle.Low <= pos.TakeProfit) {
		return m.close(pos.TakeProfit, candle, model.CloseTakeProfit)
	}

	// 3. Trailing stop: breach of the previously ratcheted level first,
	// then re-ratchet from this bar's close.
	if m.params.TrailingStopEnabled {
		if pos.Trailing != nil {
			t := *pos.Trailing
			if (long && candle.Low <= t) || (!long && candle.High >= t) {
				return m.close(t, candle, model.CloseTrailingStop)
			}
		}
		m.ratchetTrailing(candle, snap)
	}

	// 4. RSI exit advisory from the strategy.
	if sig.Action == model.ActionClose {
		return m.close(candle.Close, candle, model.CloseRSIExit)
	}

	return nil
}

// ratchetTrailing activates and tightens the trailing stop. The level only
// ever moves in the position's favor — it never loosens.
func (m *Manager) ratchetTrailing(candle model.Candle, snap model.IndicatorSnapshot) {
	if !snap.Ready {
		return
	}
	pos := m.pos
	p := &m.params

	if pos.Trailing == nil {
		if pos.UnrealizedGainPct(candle.Close)*100 < p.TrailingActivatePct {
			return
		}
		log.Printf("[position] trailing stop activated for %s @ %.4f", pos.Key(), candle.Close)
	}

	dist := snap.ATR * p.TrailingATRMult
	var candidate float64
	if pos.Side == model.SideLong {
		candidate = candle.Close - dist
		if pos.Trailing == nil || candidate > *pos.Trailing {
			pos.Trailing = &candidate
		}
	} else {
		candidate = candle.Close + dist
		if pos.Trailing == nil || candidate < *pos.Trailing {
			pos.Trailing = &candidate
		}
	}
}

// close realizes the position at the given exit price. Slippage erodes
// realized gains only — it is never applied against losses.
func (m *Manager) close(exit float64, candle model.Candle, reason model.CloseReason) *model.Trade {
	pos := m.pos
	m.pos = nil

	gross := (exit - pos.EntryPrice) * pos.Size * pos.Side.Sign()
	net := gross
	if gross > 0 {
		net = gross * (1 - m.params.SlippagePct)
	}

	pos.Status = model.PositionClosed
	trade := &model.Trade{
		Symbol:     pos.Symbol,
		Exchange:   pos.Exchange,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exit,
		Size:       pos.Size,
		PnLGross:   gross,
		PnLNet:     net,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   candle.TS,
		Reason:     reason,
	}

	log.Printf("[position] close %s %s @ %.4f reason=%s pnl_net=%.4f",
		pos.Side, pos.Key(), exit, reason, net)
	return trade
}

func sideOf(a model.Action) model.Side {
	if a == model.ActionShort {
		return model.SideShort
	}
	return model.SideLong
}
