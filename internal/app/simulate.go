package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"futures-volume-alerts/internal/alerting"
	"futures-volume-alerts/internal/exchange"
	"futures-volume-alerts/internal/service"
	"futures-volume-alerts/internal/volume"
)

// SimulateAlert runs one detection cycle against a synthetic venue so
// the alert pipeline can be exercised end to end without live data.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled in config")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	id, err := exchange.Parse(opts.Exchange)
	if err != nil {
		return err
	}
	if opts.MeanUSD <= 0 || opts.LatestUSD <= 0 || opts.Price <= 0 {
		return errors.New("--mean, --latest, and --price must be greater than zero")
	}

	now := time.Now().UTC()
	mean := decimal.NewFromFloat(opts.MeanUSD)
	latest := decimal.NewFromFloat(opts.LatestUSD)
	price := decimal.NewFromFloat(opts.Price)

	window := volume.NewWindowStore(a.Config.Monitor.Window)
	window.Append(volume.Observation{
		Exchange:       id,
		Timestamp:      now.Add(-time.Minute),
		BaseVolumeBTC:  mean.Div(price),
		QuoteVolumeUSD: mean,
		ReferencePrice: price,
	})

	dispatcher := alerting.NewDispatcher(a.Config.EffectiveCooldown(), a.Config.Monitor.Window, a.Logger)
	adapter := &staticAdapter{id: id, quote: latest, price: price, at: now}

	svc := service.New(a.Config, nil, []exchange.Adapter{adapter}, window, dispatcher, nil, nil, notifier, a.Logger)
	return svc.ProcessTick(ctx, now)
}

type staticAdapter struct {
	id    exchange.ID
	quote decimal.Decimal
	price decimal.Decimal
	at    time.Time
}

func (s *staticAdapter) ID() exchange.ID { return s.id }

func (s *staticAdapter) Fetch(ctx context.Context) (exchange.VolumeSample, error) {
	quote := s.quote
	return exchange.VolumeSample{
		Exchange:       s.id,
		Timestamp:      s.at,
		QuoteVolume:    &quote,
		ReferencePrice: s.price,
	}, nil
}

var _ exchange.Adapter = (*staticAdapter)(nil)
