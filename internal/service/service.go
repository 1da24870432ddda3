package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"futures-volume-alerts/internal/alerting"
	"futures-volume-alerts/internal/config"
	"futures-volume-alerts/internal/exchange"
	"futures-volume-alerts/internal/scheduler"
	"futures-volume-alerts/internal/storage"
	"futures-volume-alerts/internal/volume"
)

// Database writes during a tick get their own deadline so a stalled
// backend cannot hold up detection on the next venue.
const persistTimeout = 5 * time.Second

// Service orchestrates fetching, detection, persistence, and alerting.
type Service struct {
	adapters   []exchange.Adapter
	scheduler  *scheduler.Scheduler
	window     *volume.WindowStore
	dispatcher *alerting.Dispatcher
	store      storage.VolumeStore
	alertStore storage.AlertStore
	notifier   alerting.Notifier
	logger     zerolog.Logger

	width        time.Duration
	thresholdPct decimal.Decimal
	fetchTimeout time.Duration
	alertsOn     bool
}

// New constructs the monitoring service.
func New(cfg *config.Config, sched *scheduler.Scheduler, adapters []exchange.Adapter, window *volume.WindowStore, dispatcher *alerting.Dispatcher, store storage.VolumeStore, alertStore storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		adapters:     adapters,
		scheduler:    sched,
		window:       window,
		dispatcher:   dispatcher,
		store:        store,
		alertStore:   alertStore,
		notifier:     notifier,
		logger:       logger.With().Str("component", "service").Logger(),
		width:        cfg.Monitor.Window,
		thresholdPct: decimal.NewFromFloat(cfg.Monitor.ThresholdPct),
		fetchTimeout: cfg.Monitor.FetchTimeout,
		alertsOn:     cfg.Alerting.Enabled,
	}
}

// Run begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// LoadHistory rehydrates the rolling window from storage so a restart
// does not blind detection for a full window width.
func (s *Service) LoadHistory(ctx context.Context, now time.Time) error {
	if s.store == nil {
		return nil
	}

	since := now.Add(-s.width).Unix()
	total := 0
	for _, adapter := range s.adapters {
		rows, err := s.store.Query(ctx, string(adapter.ID()), since)
		if err != nil {
			return fmt.Errorf("load history for %s: %w", adapter.ID(), err)
		}
		for _, row := range rows {
			s.window.Append(volume.Observation{
				Exchange:       adapter.ID(),
				Timestamp:      time.Unix(row.TS, 0).UTC(),
				BaseVolumeBTC:  decimal.NewFromFloat(row.BaseVolumeBTC),
				QuoteVolumeUSD: decimal.NewFromFloat(row.QuoteVolumeUSD),
			})
		}
		total += len(rows)
	}

	s.logger.Info().Int("observations", total).Msg("window rehydrated from storage")
	return nil
}

type fetchResult struct {
	id     exchange.ID
	sample exchange.VolumeSample
	err    error
}

// ProcessTick runs one polling cycle: fetch every venue concurrently,
// then evaluate the results one venue at a time.
func (s *Service) ProcessTick(ctx context.Context, at time.Time) error {
	results := s.fetchAll(ctx)

	// A tick in flight runs to completion even when the run context is
	// cancelled mid-way, so evaluation uses a detached context.
	evalCtx := context.WithoutCancel(ctx)

	failures := 0
	totalUSD := decimal.Zero
	for _, res := range results {
		if res.err != nil {
			failures++
			s.logger.Error().Err(res.err).Str("exchange", string(res.id)).Msg("fetch failed")
			continue
		}

		obs, err := volume.Normalize(res.sample)
		if err != nil {
			failures++
			s.logger.Error().Err(err).Str("exchange", string(res.id)).Msg("sample rejected")
			continue
		}

		s.evaluate(evalCtx, obs, at)
		totalUSD = totalUSD.Add(obs.QuoteVolumeUSD)
	}

	if failures == len(s.adapters) {
		return fmt.Errorf("all %d exchange fetches failed", len(s.adapters))
	}

	s.logger.Info().
		Time("tick", at).
		Int("venues", len(s.adapters)-failures).
		Int("failures", failures).
		Str("total_quote_usd", totalUSD.StringFixed(0)).
		Msg("tick complete")
	return nil
}

func (s *Service) fetchAll(ctx context.Context) []fetchResult {
	results := make([]fetchResult, len(s.adapters))

	var wg sync.WaitGroup
	for i, adapter := range s.adapters {
		wg.Add(1)
		go func(slot int, a exchange.Adapter) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
			defer cancel()
			sample, err := a.Fetch(fetchCtx)
			results[slot] = fetchResult{id: a.ID(), sample: sample, err: err}
		}(i, adapter)
	}
	wg.Wait()

	return results
}

// evaluate classifies one observation against its venue's window. The
// mean is taken before the observation enters the window, so the latest
// figure never dilutes its own baseline.
func (s *Service) evaluate(ctx context.Context, obs volume.Observation, at time.Time) {
	mean, meanErr := s.window.MeanQuoteVolumeUSD(obs.Exchange, at, s.width)
	switch {
	case meanErr == nil:
		c := volume.Classify(obs, mean, s.thresholdPct)
		if c.Direction != volume.Stable {
			s.logger.Info().
				Str("exchange", string(obs.Exchange)).
				Str("direction", c.Direction.String()).
				Str("pct", c.Pct.StringFixed(2)).
				Msg("volume deviation detected")
		}
		if s.alertsOn {
			if alert, fired := s.dispatcher.MaybeAlert(obs.Exchange, c, obs, mean, at); fired {
				s.deliver(ctx, alert)
			}
		}
	case errors.Is(meanErr, volume.ErrNoData):
		s.logger.Debug().Str("exchange", string(obs.Exchange)).Msg("window empty; collecting baseline")
	default:
		s.logger.Error().Err(meanErr).Str("exchange", string(obs.Exchange)).Msg("window mean unavailable")
	}

	s.window.Append(obs)
	s.persist(ctx, obs)
}

// deliver records and sends one alert. Failures on either path are
// logged and swallowed; the dispatcher has already committed the alert
// state, so a flaky channel can only lose this alert, never duplicate it.
func (s *Service) deliver(ctx context.Context, alert alerting.Alert) {
	s.logger.Warn().
		Str("exchange", string(alert.Exchange)).
		Str("direction", alert.Direction.String()).
		Str("pct", alert.Pct.StringFixed(2)).
		Str("latest_usd", alert.LatestUSD.StringFixed(0)).
		Str("window_mean_usd", alert.WindowMeanUSD.StringFixed(0)).
		Msg("volume deviation alert")

	if s.alertStore != nil {
		row := storage.AlertRow{
			TS:             alert.At.Unix(),
			Exchange:       string(alert.Exchange),
			Direction:      alert.Direction.String(),
			Pct:            alert.Pct.InexactFloat64(),
			QuoteVolumeUSD: alert.LatestUSD.InexactFloat64(),
			WindowMeanUSD:  alert.WindowMeanUSD.InexactFloat64(),
		}
		persistCtx, cancel := context.WithTimeout(ctx, persistTimeout)
		if _, err := s.alertStore.InsertAlert(persistCtx, row); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist alert record")
		}
		cancel()
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, alert); err != nil {
			s.logger.Error().Err(err).Msg("failed to dispatch alert")
		}
	}
}

func (s *Service) persist(ctx context.Context, obs volume.Observation) {
	if s.store == nil {
		return
	}

	row := storage.VolumeRow{
		TS:             obs.Timestamp.Unix(),
		Exchange:       string(obs.Exchange),
		BaseVolumeBTC:  obs.BaseVolumeBTC.InexactFloat64(),
		QuoteVolumeUSD: obs.QuoteVolumeUSD.InexactFloat64(),
	}
	persistCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := s.store.Append(persistCtx, row); err != nil {
		s.logger.Error().Err(err).Str("exchange", string(obs.Exchange)).Msg("failed to persist observation")
	}
}
