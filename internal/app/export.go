package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	chart "github.com/wcharczuk/go-chart/v2"

	"futures-volume-alerts/internal/storage"
)

// Export renders historical data as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	rows, err := store.ListBetween(ctx, from.Unix(), to.Unix())
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		a.Logger.Info().Msg("no observations found for export window")
		return nil
	}

	// Each venue is its own series; downsampling one venue must not
	// thin out another.
	grouped := lo.GroupBy(rows, func(row storage.VolumeRow) string { return row.Exchange })
	venues := lo.Keys(grouped)
	sort.Strings(venues)

	exported := 0
	for _, venue := range venues {
		grouped[venue] = downsampleRows(grouped[venue], opts.MaxPoints)
		exported += len(grouped[venue])
	}
	a.Logger.Info().Int("total", len(rows)).Int("exported", exported).Strs("venues", venues).Msg("exporting observations")

	if opts.CSVPath != "" {
		if err := writeVolumesCSV(opts.CSVPath, venues, grouped); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeVolumesPNG(opts.PNGPath, venues, grouped); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRows(rows []storage.VolumeRow, max int) []storage.VolumeRow {
	if max <= 0 || len(rows) <= max {
		return rows
	}

	result := make([]storage.VolumeRow, 0, max)
	step := float64(len(rows)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		result = append(result, rows[idx])
	}
	return result
}

func writeVolumesCSV(path string, venues []string, grouped map[string][]storage.VolumeRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"ts", "exchange", "base_volume_btc", "quote_volume_usd"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, venue := range venues {
		for _, row := range grouped[venue] {
			record := []string{
				time.Unix(row.TS, 0).UTC().Format(time.RFC3339),
				row.Exchange,
				strconv.FormatFloat(row.BaseVolumeBTC, 'f', 4, 64),
				strconv.FormatFloat(row.QuoteVolumeUSD, 'f', 2, 64),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	return writer.Error()
}

func writeVolumesPNG(path string, venues []string, grouped map[string][]storage.VolumeRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	series := make([]chart.Series, 0, len(venues))
	for _, venue := range venues {
		rows := grouped[venue]
		x := make([]time.Time, len(rows))
		y := make([]float64, len(rows))
		for i, row := range rows {
			x[i] = time.Unix(row.TS, 0).UTC()
			y[i] = row.QuoteVolumeUSD
		}
		series = append(series, chart.TimeSeries{
			Name:    strings.ToUpper(venue),
			XValues: x,
			YValues: y,
		})
	}

	volumeFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "24h Quote Volume (USD)",
			ValueFormatter: volumeFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
