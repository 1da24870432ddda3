package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured indicates the backing database handle was not initialised.
var ErrNotConfigured = errors.New("storage: database not configured")

// VolumeRow is one persisted normalized observation. TS is a unix
// timestamp in seconds so rows stay portable between sqlite and postgres.
type VolumeRow struct {
	TS             int64
	Exchange       string
	BaseVolumeBTC  float64
	QuoteVolumeUSD float64
}

// AlertRow captures an emitted alert for auditing.
type AlertRow struct {
	ID             int64
	TS             int64
	Exchange       string
	Direction      string
	Pct            float64
	QuoteVolumeUSD float64
	WindowMeanUSD  float64
	CreatedAt      time.Time
}

// VolumeStore defines operations for observation persistence.
type VolumeStore interface {
	Append(ctx context.Context, row VolumeRow) error
	// Query returns rows for one exchange with ts strictly greater
	// than sinceTS, ordered by ts ascending.
	Query(ctx context.Context, exchange string, sinceTS int64) ([]VolumeRow, error)
	// ListRecent returns the newest rows first. An empty exchange
	// matches all venues.
	ListRecent(ctx context.Context, exchange string, limit int) ([]VolumeRow, error)
	ListBetween(ctx context.Context, from, to int64) ([]VolumeRow, error)
	CountSamples(ctx context.Context) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRow) (AlertRow, error)
	// ListRecentAlerts returns the newest alerts first. An empty
	// exchange matches all venues.
	ListRecentAlerts(ctx context.Context, exchange string, limit int) ([]AlertRow, error)
}

// Store aggregates both stores behind one closable handle.
type Store interface {
	VolumeStore
	AlertStore
	Close() error
}
