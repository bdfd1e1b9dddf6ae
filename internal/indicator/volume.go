package indicator

import "breakout-systemv1/internal/model"

// VolumeRatio calculates current volume divided by the simple moving average
// of volume over a lookback window. Ratio > 1 means above-average activity.
type VolumeRatio struct {
	avg     *SMA
	current float64
}

// NewVolumeRatio creates a volume ratio indicator over the given lookback.
func NewVolumeRatio(lookback int) *VolumeRatio {
	return &VolumeRatio{avg: NewSMA(lookback)}
}

func (v *VolumeRatio) Name() string { return "VOLR_" + model.Itoa(v.avg.period) }

func (v *VolumeRatio) Update(candle model.Candle) {
	v.avg.push(candle.Volume)
	if v.avg.Ready() && v.avg.Value() > 0 {
		v.current = candle.Volume / v.avg.Value()
	}
}

func (v *VolumeRatio) Value() float64 { return v.current }
func (v *VolumeRatio) Ready() bool    { return v.avg.Ready() && v.avg.Value() > 0 }
