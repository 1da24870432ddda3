package volume

import "github.com/shopspring/decimal"

// Direction labels how the latest volume sits against the window mean.
type Direction int

const (
	Stable Direction = iota
	Increase
	Decrease
)

func (d Direction) String() string {
	switch d {
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	default:
		return "stable"
	}
}

// Classification is the outcome of comparing an observation to its window.
type Classification struct {
	Direction Direction
	Pct       decimal.Decimal
}

// Means below one cent carry no signal; classifying against them would
// manufacture huge percentages out of noise.
var degenerateMeanUSD = decimal.New(1, -2)

// Classify computes the relative deviation of the latest observation from
// the window mean and grades it against thresholdPct. The mean must be
// computed over a window that excludes the latest observation, otherwise
// the trigger value dilutes its own baseline.
//
// Thresholds are inclusive: pct == thresholdPct is an Increase and
// pct == -thresholdPct a Decrease. A zero or near-zero mean is Stable.
func Classify(latest Observation, meanUSD, thresholdPct decimal.Decimal) Classification {
	if meanUSD.LessThan(degenerateMeanUSD) {
		return Classification{Direction: Stable, Pct: decimal.Zero}
	}

	pct := latest.QuoteVolumeUSD.Sub(meanUSD).Div(meanUSD).Mul(decimal.NewFromInt(100))

	switch {
	case pct.GreaterThanOrEqual(thresholdPct):
		return Classification{Direction: Increase, Pct: pct}
	case pct.LessThanOrEqual(thresholdPct.Neg()):
		return Classification{Direction: Decrease, Pct: pct}
	default:
		return Classification{Direction: Stable, Pct: pct}
	}
}
