package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"futures-volume-alerts/internal/alerting"
	"futures-volume-alerts/internal/config"
	"futures-volume-alerts/internal/exchange"
	"futures-volume-alerts/internal/scheduler"
	"futures-volume-alerts/internal/service"
	"futures-volume-alerts/internal/storage"
	"futures-volume-alerts/internal/volume"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newAdapters() ([]exchange.Adapter, error) {
	ids, err := a.Config.ExchangeIDs()
	if err != nil {
		return nil, err
	}

	monitor := a.Config.Monitor
	adapters := make([]exchange.Adapter, 0, len(ids))
	for _, id := range ids {
		switch id {
		case exchange.Binance:
			adapters = append(adapters, exchange.NewBinance(a.Logger))
		case exchange.Bybit:
			adapters = append(adapters, exchange.NewBybit(monitor.FetchTimeout, a.Logger))
		case exchange.OKX:
			adapters = append(adapters, exchange.NewOKX(exchange.OKXOptions{
				BaseURL:   monitor.OKX.BaseURL,
				Timeout:   monitor.FetchTimeout,
				UserAgent: monitor.UserAgent,
			}, a.Logger))
		case exchange.Deribit:
			adapters = append(adapters, exchange.NewDeribit(exchange.DeribitOptions{
				BaseURL:   monitor.Deribit.BaseURL,
				Timeout:   monitor.FetchTimeout,
				UserAgent: monitor.UserAgent,
			}, a.Logger))
		default:
			return nil, fmt.Errorf("no adapter for exchange %q", id)
		}
	}
	return adapters, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	switch a.Config.Storage.Driver {
	case "postgres":
		pool, err := storage.NewPool(ctx, a.Config.Storage.Postgres)
		if err != nil {
			return nil, err
		}
		store := storage.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return storage.OpenSQLite(a.Config.Storage.SQLite.Path)
	}
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	adapters, err := a.newAdapters()
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:        a.Config.Scheduler.Interval,
		AlignToInterval: a.Config.Scheduler.AlignToInterval,
		StartupDelay:    a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	window := volume.NewWindowStore(a.Config.Monitor.Window)
	dispatcher := alerting.NewDispatcher(a.Config.EffectiveCooldown(), a.Config.Monitor.Window, a.Logger)
	notifier := a.newNotifier()
	if notifier == nil && a.Config.Alerting.Enabled {
		a.Logger.Warn().Msg("no alert channel configured; alerts will only be logged")
	}

	svc := service.New(a.Config, sched, adapters, window, dispatcher, store, store, notifier, a.Logger)

	if err := svc.LoadHistory(ctx, time.Now().UTC()); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to rehydrate window; starting cold")
	}

	stored, err := store.CountSamples(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("failed to count stored observations")
	}
	a.Logger.Info().Int("venues", len(adapters)).Int64("stored_observations", stored).Msg("starting volume monitor")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("volume monitor stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical observations.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Exchange string
	Limit    int
	Alerts   bool
}

// SimulateOptions configure the simulate-alert command.
type SimulateOptions struct {
	Exchange  string
	MeanUSD   float64
	LatestUSD float64
	Price     float64
}
