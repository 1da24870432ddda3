package volume

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"futures-volume-alerts/internal/exchange"
)

// ErrNoData indicates an exchange has no observations inside the window.
var ErrNoData = errors.New("volume: no observations in window")

// WindowStore keeps the recent observations per exchange, ordered by
// timestamp. It is the in-memory working set for change detection; durable
// history lives in storage and only flows in through Append on rehydration.
//
// The store is written only by the driver tick. retention bounds how far
// back entries are kept and must be at least the widest window queried.
type WindowStore struct {
	retention time.Duration
	byVenue   map[exchange.ID][]Observation
}

// NewWindowStore builds a store that retains observations for the given
// duration behind each venue's newest timestamp.
func NewWindowStore(retention time.Duration) *WindowStore {
	if retention <= 0 {
		panic("window retention must be positive")
	}
	return &WindowStore{
		retention: retention,
		byVenue:   make(map[exchange.ID][]Observation),
	}
}

// Append inserts an observation keeping the venue sequence sorted by
// timestamp. Late arrivals (exchange-reported clocks trail the local one)
// land in order rather than at the tail. Entries that have aged out of the
// retention span are evicted lazily here.
func (w *WindowStore) Append(obs Observation) {
	seq := w.byVenue[obs.Exchange]

	i := sort.Search(len(seq), func(i int) bool {
		return seq[i].Timestamp.After(obs.Timestamp)
	})
	seq = append(seq, Observation{})
	copy(seq[i+1:], seq[i:])
	seq[i] = obs

	// evict against the newest timestamp, not the wall clock
	cutoff := seq[len(seq)-1].Timestamp.Add(-w.retention)
	start := 0
	for start < len(seq) && !seq[start].Timestamp.After(cutoff) {
		start++
	}
	if start > 0 {
		seq = append(seq[:0], seq[start:]...)
	}

	w.byVenue[obs.Exchange] = seq
}

// Window returns the observations for ex with timestamps in (now-width, now],
// oldest first. The result is a copy; mutating it does not affect the store.
func (w *WindowStore) Window(ex exchange.ID, now time.Time, width time.Duration) []Observation {
	seq := w.byVenue[ex]
	floor := now.Add(-width)

	start := sort.Search(len(seq), func(i int) bool {
		return seq[i].Timestamp.After(floor)
	})
	end := sort.Search(len(seq), func(i int) bool {
		return seq[i].Timestamp.After(now)
	})
	if start >= end {
		return nil
	}

	out := make([]Observation, end-start)
	copy(out, seq[start:end])
	return out
}

// MeanQuoteVolumeUSD averages QuoteVolumeUSD over the window, or ErrNoData
// when the window is empty. Callers treat ErrNoData as "insufficient
// history": skip alert evaluation, keep appending.
func (w *WindowStore) MeanQuoteVolumeUSD(ex exchange.ID, now time.Time, width time.Duration) (decimal.Decimal, error) {
	obs := w.Window(ex, now, width)
	if len(obs) == 0 {
		return decimal.Decimal{}, ErrNoData
	}

	sum := decimal.Zero
	for _, o := range obs {
		sum = sum.Add(o.QuoteVolumeUSD)
	}
	return sum.Div(decimal.NewFromInt(int64(len(obs)))), nil
}
