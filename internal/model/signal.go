package model

import (
	"encoding/json"
	"time"
)

// Action represents the directional decision of a strategy for one bar.
type Action string

const (
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
	ActionClose Action = "CLOSE"
	ActionWait  Action = "WAIT"
)

// Signal is the per-bar output of a strategy: a direction, a confidence
// score in [0,10], and a human-readable justification. Produced fresh each
// bar, never mutated.
type Signal struct {
	Strategy   string    `json:"strategy"`
	Symbol     string    `json:"symbol"`
	Exchange   string    `json:"exchange"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"` // [0,10]
	Reason     string    `json:"reason"`
	ComputedAt time.Time `json:"computed_at"` // timestamp of the bar that produced it
}

// Wait returns a WAIT signal with the given reason.
func Wait(reason string, ts time.Time) Signal {
	return Signal{Action: ActionWait, Reason: reason, ComputedAt: ts}
}

// Actionable reports whether the signal proposes opening a position.
func (s *Signal) Actionable() bool {
	return s.Action == ActionLong || s.Action == ActionShort
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
