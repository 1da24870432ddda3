package volume

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-volume-alerts/internal/exchange"
)

func obsAt(ex exchange.ID, ts time.Time, quoteUSD int64) Observation {
	return Observation{
		Exchange:       ex,
		Timestamp:      ts,
		QuoteVolumeUSD: decimal.NewFromInt(quoteUSD),
	}
}

func TestWindowStoreKeepsTimestampOrder(t *testing.T) {
	now := time.Unix(1755700000, 0).UTC()
	w := NewWindowStore(15 * time.Minute)

	w.Append(obsAt(exchange.Binance, now.Add(-2*time.Minute), 200))
	w.Append(obsAt(exchange.Binance, now.Add(-4*time.Minute), 100))
	w.Append(obsAt(exchange.Binance, now.Add(-3*time.Minute), 150))

	got := w.Window(exchange.Binance, now, 15*time.Minute)
	require.Len(t, got, 3)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
	assert.True(t, got[1].Timestamp.Before(got[2].Timestamp))
	assert.True(t, got[0].QuoteVolumeUSD.Equal(decimal.NewFromInt(100)))
}

func TestWindowBoundsAreHalfOpen(t *testing.T) {
	now := time.Unix(1755700000, 0).UTC()
	width := 10 * time.Minute
	w := NewWindowStore(width)

	w.Append(obsAt(exchange.OKX, now.Add(-width), 1))        // ts == now-width: excluded
	w.Append(obsAt(exchange.OKX, now.Add(-width+time.Second), 2)) // just inside
	w.Append(obsAt(exchange.OKX, now, 3))                     // ts == now: included

	got := w.Window(exchange.OKX, now, width)
	require.Len(t, got, 2)
	assert.True(t, got[0].QuoteVolumeUSD.Equal(decimal.NewFromInt(2)))
	assert.True(t, got[1].QuoteVolumeUSD.Equal(decimal.NewFromInt(3)))
}

func TestWindowExcludesEntriesNewerThanNow(t *testing.T) {
	now := time.Unix(1755700000, 0).UTC()
	w := NewWindowStore(15 * time.Minute)

	w.Append(obsAt(exchange.Bybit, now.Add(-time.Minute), 10))
	w.Append(obsAt(exchange.Bybit, now.Add(time.Minute), 20)) // ahead of now

	got := w.Window(exchange.Bybit, now, 15*time.Minute)
	require.Len(t, got, 1)
	assert.True(t, got[0].QuoteVolumeUSD.Equal(decimal.NewFromInt(10)))
}

func TestWindowStoreEvictsAgedEntries(t *testing.T) {
	start := time.Unix(1755700000, 0).UTC()
	retention := 5 * time.Minute
	w := NewWindowStore(retention)

	w.Append(obsAt(exchange.Deribit, start, 1))
	// advancing the venue clock past retention ages the first entry out
	later := start.Add(retention + time.Minute)
	w.Append(obsAt(exchange.Deribit, later, 2))

	got := w.Window(exchange.Deribit, later, retention)
	require.Len(t, got, 1)
	assert.True(t, got[0].QuoteVolumeUSD.Equal(decimal.NewFromInt(2)))

	// even a window query wider than what survived returns no stale entries
	all := w.Window(exchange.Deribit, later, retention)
	for _, o := range all {
		assert.False(t, o.Timestamp.Before(later.Add(-retention)))
	}
}

func TestWindowIsolatedPerExchange(t *testing.T) {
	now := time.Unix(1755700000, 0).UTC()
	w := NewWindowStore(15 * time.Minute)

	w.Append(obsAt(exchange.Binance, now, 100))
	w.Append(obsAt(exchange.Bybit, now, 200))

	got := w.Window(exchange.Binance, now, 15*time.Minute)
	require.Len(t, got, 1)
	assert.Equal(t, exchange.Binance, got[0].Exchange)
}

func TestMeanQuoteVolumeUSD(t *testing.T) {
	now := time.Unix(1755700000, 0).UTC()
	w := NewWindowStore(15 * time.Minute)

	_, err := w.MeanQuoteVolumeUSD(exchange.Binance, now, 15*time.Minute)
	assert.ErrorIs(t, err, ErrNoData, "empty window must be NoData, not a zero mean")

	w.Append(obsAt(exchange.Binance, now.Add(-3*time.Minute), 900_000))
	w.Append(obsAt(exchange.Binance, now.Add(-2*time.Minute), 1_000_000))
	w.Append(obsAt(exchange.Binance, now.Add(-time.Minute), 1_100_000))

	mean, err := w.MeanQuoteVolumeUSD(exchange.Binance, now, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, mean.Equal(decimal.NewFromInt(1_000_000)), "got %s", mean)
}

func TestMeanSkipsEvictedAndOutOfWindowEntries(t *testing.T) {
	now := time.Unix(1755700000, 0).UTC()
	width := 10 * time.Minute
	w := NewWindowStore(width)

	w.Append(obsAt(exchange.OKX, now.Add(-width-time.Minute), 999_999)) // out of window
	w.Append(obsAt(exchange.OKX, now.Add(-time.Minute), 500))

	mean, err := w.MeanQuoteVolumeUSD(exchange.OKX, now, width)
	require.NoError(t, err)
	assert.True(t, mean.Equal(decimal.NewFromInt(500)))
}
