package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"futures-volume-alerts/internal/exchange"
	"futures-volume-alerts/internal/storage"
)

// Show prints recent observations, or recent alerts with --alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Exchange != "" {
		if _, err := exchange.Parse(opts.Exchange); err != nil {
			return err
		}
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.Alerts {
		return a.showAlerts(ctx, store, opts.Exchange, opts.Limit)
	}
	return a.showObservations(ctx, store, opts.Exchange, opts.Limit)
}

func (a *App) showObservations(ctx context.Context, store storage.VolumeStore, exchangeFilter string, limit int) error {
	rows, err := store.ListRecent(ctx, exchangeFilter, limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no observations found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tExchange\tBase (BTC)\tQuote (USD)")

	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%.4f\t%.0f\n",
			time.Unix(row.TS, 0).UTC().Format(time.RFC3339),
			row.Exchange,
			row.BaseVolumeBTC,
			row.QuoteVolumeUSD,
		)
	}

	return writer.Flush()
}

func (a *App) showAlerts(ctx context.Context, store storage.AlertStore, exchangeFilter string, limit int) error {
	alerts, err := store.ListRecentAlerts(ctx, exchangeFilter, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tExchange\tDirection\tPct\tLatest (USD)\tWindow Mean (USD)")

	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%+.2f\t%.0f\t%.0f\n",
			time.Unix(alert.TS, 0).UTC().Format(time.RFC3339),
			alert.Exchange,
			alert.Direction,
			alert.Pct,
			alert.QuoteVolumeUSD,
			alert.WindowMeanUSD,
		)
	}

	return writer.Flush()
}
