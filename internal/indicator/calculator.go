package indicator

import "breakout-systemv1/internal/model"

// Config specifies the lookbacks for one Calculator instance.
type Config struct {
	RSIPeriod     int // default 14
	ATRPeriod     int // default 14
	SMAFastPeriod int // default 20
	SMASlowPeriod int // default 50, also the volume-ratio lookback
	EMAFastPeriod int // default 20
	VolWindow     int // default 20, return window for volatility
	SlopeBars     int // default 3, bars over which EMA slope is measured
}

// DefaultConfig returns the standard lookbacks.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:     14,
		ATRPeriod:     14,
		SMAFastPeriod: 20,
		SMASlowPeriod: 50,
		EMAFastPeriod: 20,
		VolWindow:     20,
		SlopeBars:     3,
	}
}

// Calculator derives one IndicatorSnapshot per candle from a set of
// streaming indicators. It is a pure function of the candle sequence fed to
// it: identical candles in identical order yield identical snapshots.
// One Calculator serves exactly one instrument — instruments must not share
// instances. Designed for single-goroutine usage.
type Calculator struct {
	cfg Config

	rsi     *RSI
	atr     *ATR
	smaFast *SMA
	smaSlow *SMA
	emaFast *EMA
	vol     *Volatility
	volr    *VolumeRatio

	// Recent EMA values for slope measurement; emaHist[0] is oldest.
	emaHist []float64
}

// NewCalculator creates a Calculator with the given lookbacks.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{
		cfg:     cfg,
		rsi:     NewRSI(cfg.RSIPeriod),
		atr:     NewATR(cfg.ATRPeriod),
		smaFast: NewSMA(cfg.SMAFastPeriod),
		smaSlow: NewSMA(cfg.SMASlowPeriod),
		emaFast: NewEMA(cfg.EMAFastPeriod),
		vol:     NewVolatility(cfg.VolWindow),
		volr:    NewVolumeRatio(cfg.SMASlowPeriod),
		emaHist: make([]float64, 0, cfg.SlopeBars+1),
	}
}

// Warmup returns the number of candles required before snapshots are Ready:
// the maximum lookback across all configured indicators.
func (c *Calculator) Warmup() int {
	warmup := c.cfg.RSIPeriod + 1 // RSI needs period deltas = period+1 closes
	for _, n := range []int{
		c.cfg.ATRPeriod,
		c.cfg.SMAFastPeriod,
		c.cfg.SMASlowPeriod,
		c.cfg.EMAFastPeriod + c.cfg.SlopeBars, // slope needs EMA history
		c.cfg.VolWindow + 1,                   // returns window needs window+1 closes
	} {
		if n > warmup {
			warmup = n
		}
	}
	return warmup
}

// Update consumes the next candle and returns the snapshot for it.
// Until warm-up completes the snapshot carries Ready=false and its value
// fields are undefined. The caller must feed candles in timestamp order and
// must have validated them first.
func (c *Calculator) Update(candle model.Candle) model.IndicatorSnapshot {
	c.rsi.Update(candle)
	c.atr.Update(candle)
	c.smaFast.Update(candle)
	c.smaSlow.Update(candle)
	c.emaFast.Update(candle)
	c.vol.Update(candle)
	c.volr.Update(candle)

	if c.emaFast.Ready() {
		c.emaHist = append(c.emaHist, c.emaFast.Value())
		if len(c.emaHist) > c.cfg.SlopeBars+1 {
			c.emaHist = c.emaHist[1:]
		}
	}

	snap := model.IndicatorSnapshot{
		Symbol:   candle.Symbol,
		Exchange: candle.Exchange,
		TS:       candle.TS,
	}

	if !c.ready() {
		return snap
	}

	snap.Ready = true
	snap.RSI = c.rsi.Value()
	snap.ATR = c.atr.Value()
	snap.SMAFast = c.smaFast.Value()
	snap.SMASlow = c.smaSlow.Value()
	snap.EMAFast = c.emaFast.Value()
	snap.VolatilityPct = c.vol.Value()
	snap.VolumeRatio = c.volr.Value()
	snap.Trend = c.trend(candle.Close)
	return snap
}

func (c *Calculator) ready() bool {
	return c.rsi.Ready() && c.atr.Ready() &&
		c.smaFast.Ready() && c.smaSlow.Ready() && c.emaFast.Ready() &&
		c.vol.Ready() && c.volr.Ready() &&
		len(c.emaHist) > c.cfg.SlopeBars
}

// trend labels the market: up when price trades above the slow SMA with a
// rising fast EMA, down on the inverse, sideways otherwise.
func (c *Calculator) trend(close float64) model.Trend {
	slope := c.emaHist[len(c.emaHist)-1] - c.emaHist[0]
	switch {
	case close > c.smaSlow.Value() && slope > 0:
		return model.TrendUp
	case close < c.smaSlow.Value() && slope < 0:
		return model.TrendDown
	default:
		return model.TrendSideways
	}
}
