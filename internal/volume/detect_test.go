package volume

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"futures-volume-alerts/internal/exchange"
)

func latestUSD(v string) Observation {
	d, _ := decimal.NewFromString(v)
	return Observation{Exchange: exchange.Binance, QuoteVolumeUSD: d}
}

func TestClassifyIncrease(t *testing.T) {
	got := Classify(latestUSD("1150000"), decimal.NewFromInt(1_000_000), decimal.NewFromInt(10))
	assert.Equal(t, Increase, got.Direction)
	assert.True(t, got.Pct.Equal(decimal.NewFromInt(15)), "got %s", got.Pct)
}

func TestClassifyDecrease(t *testing.T) {
	got := Classify(latestUSD("900000"), decimal.NewFromInt(1_000_000), decimal.NewFromInt(10))
	assert.Equal(t, Decrease, got.Direction)
	assert.True(t, got.Pct.Equal(decimal.NewFromInt(-10)), "got %s", got.Pct)
}

func TestClassifyThresholdBoundariesInclusive(t *testing.T) {
	mean := decimal.NewFromInt(1_000_000)
	threshold := decimal.NewFromInt(20)

	assert.Equal(t, Increase, Classify(latestUSD("1200000"), mean, threshold).Direction, "pct == +threshold")
	assert.Equal(t, Decrease, Classify(latestUSD("800000"), mean, threshold).Direction, "pct == -threshold")
	assert.Equal(t, Stable, Classify(latestUSD("1199999"), mean, threshold).Direction, "just under +threshold")
	assert.Equal(t, Stable, Classify(latestUSD("800001"), mean, threshold).Direction, "just above -threshold")
}

func TestClassifyStableWithinThreshold(t *testing.T) {
	got := Classify(latestUSD("1050000"), decimal.NewFromInt(1_000_000), decimal.NewFromInt(10))
	assert.Equal(t, Stable, got.Direction)
	assert.True(t, got.Pct.Equal(decimal.NewFromInt(5)))
}

func TestClassifyDegenerateMean(t *testing.T) {
	threshold := decimal.NewFromInt(10)

	got := Classify(latestUSD("1000000"), decimal.Zero, threshold)
	assert.Equal(t, Stable, got.Direction, "zero mean never classifies as movement")
	assert.True(t, got.Pct.IsZero())

	nearZero := decimal.New(1, -3) // a tenth of a cent
	got = Classify(latestUSD("1000000"), nearZero, threshold)
	assert.Equal(t, Stable, got.Direction, "near-zero mean never classifies as movement")
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "increase", Increase.String())
	assert.Equal(t, "decrease", Decrease.String())
	assert.Equal(t, "stable", Stable.String())
}
