package model

import "time"

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position is the single mutable entity in the simulation core. At most one
// non-closed position exists per instrument; the position manager enforces
// that, not this type.
type Position struct {
	Symbol     string         `json:"symbol"`
	Exchange   string         `json:"exchange"`
	Side       Side           `json:"side"`
	EntryPrice float64        `json:"entry_price"`
	Size       float64        `json:"size"` // base units
	OpenedAt   time.Time      `json:"opened_at"`
	StopLoss   float64        `json:"stop_loss_price"`
	TakeProfit float64        `json:"take_profit_price"`
	Trailing   *float64       `json:"trailing_stop_price,omitempty"` // nil until activated
	Status     PositionStatus `json:"status"`
}

// Key returns a unique key for this position's instrument: "exchange:symbol".
func (p *Position) Key() string {
	return p.Exchange + ":" + p.Symbol
}

// UnrealizedPnL computes the mark-to-market profit at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Size * p.Side.Sign()
}

// UnrealizedGainPct returns the favorable excursion as a fraction of entry
// price (positive = in profit), regardless of side.
func (p *Position) UnrealizedGainPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * p.Side.Sign()
}
