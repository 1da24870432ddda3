package alerting

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"futures-volume-alerts/internal/exchange"
	"futures-volume-alerts/internal/volume"
)

// Alert carries everything a notification channel needs to render a fired
// volume alert.
type Alert struct {
	Exchange      exchange.ID
	Direction     volume.Direction
	Pct           decimal.Decimal
	LatestUSD     decimal.Decimal
	WindowMeanUSD decimal.Decimal
	Price         decimal.Decimal
	Window        time.Duration
	At            time.Time
}

// State tracks the last alert per exchange. The zero value means no alert
// has fired yet (LastDirection Stable doubles as the NoAlertYet marker since
// Stable classifications never fire).
type State struct {
	LastDirection volume.Direction
	LastAt        time.Time
}

// Dispatcher decides whether a classification becomes an alert. Repeat
// alerts in the same direction are suppressed for the cooldown span; a
// direction flip fires immediately. State lives for the process lifetime
// and is mutated only by the driver tick.
type Dispatcher struct {
	cooldown time.Duration
	window   time.Duration
	states   map[exchange.ID]State
	logger   zerolog.Logger
}

// NewDispatcher builds a dispatcher. The caller is expected to floor the
// cooldown at one polling interval so a condition persisting across two
// overlapping windows cannot alert twice back to back.
func NewDispatcher(cooldown, window time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		cooldown: cooldown,
		window:   window,
		states:   make(map[exchange.ID]State),
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// MaybeAlert applies the suppression rules and, when the alert fires,
// commits the new state before returning it. A failed send downstream never
// re-arms the alert; delivery is at most once per cooldown span.
func (d *Dispatcher) MaybeAlert(ex exchange.ID, c volume.Classification, latest volume.Observation, meanUSD decimal.Decimal, now time.Time) (Alert, bool) {
	if c.Direction == volume.Stable {
		return Alert{}, false
	}

	if prev, ok := d.states[ex]; ok && prev.LastDirection == c.Direction {
		if now.Sub(prev.LastAt) < d.cooldown {
			d.logger.Debug().
				Str("exchange", string(ex)).
				Str("direction", c.Direction.String()).
				Time("last_alert", prev.LastAt).
				Msg("alert suppressed inside cooldown")
			return Alert{}, false
		}
	}

	d.states[ex] = State{LastDirection: c.Direction, LastAt: now}

	return Alert{
		Exchange:      ex,
		Direction:     c.Direction,
		Pct:           c.Pct,
		LatestUSD:     latest.QuoteVolumeUSD,
		WindowMeanUSD: meanUSD,
		Price:         latest.ReferencePrice,
		Window:        d.window,
		At:            now,
	}, true
}

// LastState reports the recorded alert state for an exchange.
func (d *Dispatcher) LastState(ex exchange.ID) (State, bool) {
	s, ok := d.states[ex]
	return s, ok
}
