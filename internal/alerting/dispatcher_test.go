package alerting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-volume-alerts/internal/exchange"
	"futures-volume-alerts/internal/volume"
)

func newTestDispatcher(cooldown time.Duration) *Dispatcher {
	return NewDispatcher(cooldown, 15*time.Minute, testLogger())
}

func classified(dir volume.Direction, pct int64) volume.Classification {
	return volume.Classification{Direction: dir, Pct: decimal.NewFromInt(pct)}
}

func TestDispatcherFiresFirstAlertAndCommitsState(t *testing.T) {
	d := newTestDispatcher(time.Minute)
	now := time.Unix(1755700000, 0).UTC()
	latest := volume.Observation{Exchange: exchange.Binance, QuoteVolumeUSD: decimal.NewFromInt(1_150_000)}

	alert, fired := d.MaybeAlert(exchange.Binance, classified(volume.Increase, 15), latest, decimal.NewFromInt(1_000_000), now)
	require.True(t, fired)
	assert.Equal(t, exchange.Binance, alert.Exchange)
	assert.Equal(t, volume.Increase, alert.Direction)
	assert.True(t, alert.LatestUSD.Equal(decimal.NewFromInt(1_150_000)))
	assert.True(t, alert.WindowMeanUSD.Equal(decimal.NewFromInt(1_000_000)))

	state, ok := d.LastState(exchange.Binance)
	require.True(t, ok)
	assert.Equal(t, volume.Increase, state.LastDirection)
	assert.Equal(t, now, state.LastAt)
}

func TestDispatcherNeverFiresOnStable(t *testing.T) {
	d := newTestDispatcher(time.Minute)
	now := time.Unix(1755700000, 0).UTC()

	_, fired := d.MaybeAlert(exchange.OKX, classified(volume.Stable, 5), volume.Observation{}, decimal.NewFromInt(1), now)
	assert.False(t, fired)
	_, ok := d.LastState(exchange.OKX)
	assert.False(t, ok, "stable classifications must not touch state")
}

func TestDispatcherSuppressesSameDirectionInsideCooldown(t *testing.T) {
	d := newTestDispatcher(5 * time.Minute)
	now := time.Unix(1755700000, 0).UTC()
	latest := volume.Observation{Exchange: exchange.Bybit}

	_, fired := d.MaybeAlert(exchange.Bybit, classified(volume.Increase, 20), latest, decimal.Zero, now)
	require.True(t, fired)

	_, fired = d.MaybeAlert(exchange.Bybit, classified(volume.Increase, 22), latest, decimal.Zero, now.Add(time.Minute))
	assert.False(t, fired, "same direction inside cooldown must be suppressed")

	state, _ := d.LastState(exchange.Bybit)
	assert.Equal(t, now, state.LastAt, "suppressed evaluation must not refresh the cooldown clock")
}

func TestDispatcherRefiresAfterCooldown(t *testing.T) {
	d := newTestDispatcher(5 * time.Minute)
	now := time.Unix(1755700000, 0).UTC()
	latest := volume.Observation{Exchange: exchange.Deribit}

	_, fired := d.MaybeAlert(exchange.Deribit, classified(volume.Increase, 20), latest, decimal.Zero, now)
	require.True(t, fired)

	_, fired = d.MaybeAlert(exchange.Deribit, classified(volume.Increase, 21), latest, decimal.Zero, now.Add(5*time.Minute))
	assert.True(t, fired, "cooldown expiry re-arms the same direction")
}

func TestDispatcherDirectionFlipOverridesCooldown(t *testing.T) {
	d := newTestDispatcher(time.Hour)
	now := time.Unix(1755700000, 0).UTC()
	latest := volume.Observation{Exchange: exchange.Binance}

	_, fired := d.MaybeAlert(exchange.Binance, classified(volume.Increase, 20), latest, decimal.Zero, now)
	require.True(t, fired)

	alert, fired := d.MaybeAlert(exchange.Binance, classified(volume.Decrease, -20), latest, decimal.Zero, now.Add(time.Minute))
	require.True(t, fired, "a flip fires immediately regardless of cooldown")
	assert.Equal(t, volume.Decrease, alert.Direction)

	state, _ := d.LastState(exchange.Binance)
	assert.Equal(t, volume.Decrease, state.LastDirection)
}

func TestDispatcherStatesIsolatedPerExchange(t *testing.T) {
	d := newTestDispatcher(time.Hour)
	now := time.Unix(1755700000, 0).UTC()
	latest := volume.Observation{}

	_, fired := d.MaybeAlert(exchange.Binance, classified(volume.Increase, 20), latest, decimal.Zero, now)
	require.True(t, fired)

	_, fired = d.MaybeAlert(exchange.Bybit, classified(volume.Increase, 20), latest, decimal.Zero, now.Add(time.Second))
	assert.True(t, fired, "one venue's cooldown must not suppress another")
}

// The canonical walkthrough: mean 1,000,000 and a 10% threshold. A 15%
// jump fires, a persisting 14% jump is suppressed, a drop to -10% flips
// and fires despite the cooldown.
func TestDispatcherScenarioIncreaseSuppressFlip(t *testing.T) {
	threshold := decimal.NewFromInt(10)
	mean := decimal.NewFromInt(1_000_000)
	d := newTestDispatcher(10 * time.Minute)
	now := time.Unix(1755700000, 0).UTC()

	tick := func(quote int64, at time.Time) (Alert, bool) {
		latest := volume.Observation{Exchange: exchange.Binance, QuoteVolumeUSD: decimal.NewFromInt(quote)}
		c := volume.Classify(latest, mean, threshold)
		return d.MaybeAlert(exchange.Binance, c, latest, mean, at)
	}

	alert, fired := tick(1_150_000, now)
	require.True(t, fired)
	assert.Equal(t, volume.Increase, alert.Direction)
	assert.True(t, alert.Pct.Equal(decimal.NewFromInt(15)))

	_, fired = tick(1_140_000, now.Add(time.Minute))
	assert.False(t, fired, "14% is still Increase but inside cooldown")

	alert, fired = tick(900_000, now.Add(2*time.Minute))
	require.True(t, fired)
	assert.Equal(t, volume.Decrease, alert.Direction)
	assert.True(t, alert.Pct.Equal(decimal.NewFromInt(-10)))
}
