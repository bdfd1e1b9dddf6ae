package model

import (
	"encoding/json"
	"time"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Sign returns +1 for LONG, -1 for SHORT.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// CloseReason identifies the exit condition that closed a position.
type CloseReason string

const (
	CloseStopLoss     CloseReason = "STOP_LOSS"
	CloseTakeProfit   CloseReason = "TAKE_PROFIT"
	CloseTrailingStop CloseReason = "TRAILING_STOP"
	CloseRSIExit      CloseReason = "RSI_EXIT"
	CloseForced       CloseReason = "FORCED_CLOSE"
)

// Trade is the immutable record created when a position closes. Trades are
// appended to an ordered, append-only ledger.
type Trade struct {
	Symbol     string      `json:"symbol"`
	Exchange   string      `json:"exchange"`
	Side       Side        `json:"side"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  float64     `json:"exit_price"`
	Size       float64     `json:"size"` // base units
	PnLGross   float64     `json:"pnl_gross"`
	PnLNet     float64     `json:"pnl_net"` // after slippage
	OpenedAt   time.Time   `json:"opened_at"`
	ClosedAt   time.Time   `json:"closed_at"`
	Reason     CloseReason `json:"close_reason"`
}

// HoldDuration returns how long the position was held.
func (t *Trade) HoldDuration() time.Duration {
	return t.ClosedAt.Sub(t.OpenedAt)
}

// JSON returns the JSON-encoded trade.
func (t *Trade) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}
