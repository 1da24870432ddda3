package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"futures-volume-alerts/internal/config"
)

const (
	insertVolumeSQL = `INSERT INTO volumes (
        ts,
        exchange,
        base_volume_btc,
        quote_volume_usd
    ) VALUES (
        $1,$2,$3,$4
    );`

	listVolumesSinceSQL = `SELECT
        ts,
        exchange,
        base_volume_btc,
        quote_volume_usd
    FROM volumes
    WHERE exchange = $1
      AND ts > $2
    ORDER BY ts;`

	listVolumesBetweenSQL = `SELECT
        ts,
        exchange,
        base_volume_btc,
        quote_volume_usd
    FROM volumes
    WHERE ts >= $1
      AND ts < $2
    ORDER BY ts;`

	listRecentVolumesSQL = `SELECT
        ts,
        exchange,
        base_volume_btc,
        quote_volume_usd
    FROM volumes
    ORDER BY ts DESC
    LIMIT $1;`

	listRecentVolumesForExchangeSQL = `SELECT
        ts,
        exchange,
        base_volume_btc,
        quote_volume_usd
    FROM volumes
    WHERE exchange = $1
    ORDER BY ts DESC
    LIMIT $2;`

	countVolumesSQL = `SELECT COUNT(*) FROM volumes;`

	insertAlertRowSQL = `INSERT INTO alerts (
        ts,
        exchange,
        direction,
        pct,
        quote_volume_usd,
        window_mean_usd
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id, ts, exchange, direction, pct, quote_volume_usd, window_mean_usd, created_at;`

	listRecentAlertRowsSQL = `SELECT
        id,
        ts,
        exchange,
        direction,
        pct,
        quote_volume_usd,
        window_mean_usd,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	listRecentAlertRowsForExchangeSQL = `SELECT
        id,
        ts,
        exchange,
        direction,
        pct,
        quote_volume_usd,
        window_mean_usd,
        created_at
    FROM alerts
    WHERE exchange = $1
    ORDER BY created_at DESC
    LIMIT $2;`
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS volumes (
        ts BIGINT NOT NULL,
        exchange TEXT NOT NULL,
        base_volume_btc DOUBLE PRECISION,
        quote_volume_usd DOUBLE PRECISION
    );`,
	`CREATE INDEX IF NOT EXISTS idx_vol_ts_ex ON volumes (ts, exchange);`,
	`CREATE TABLE IF NOT EXISTS alerts (
        id BIGSERIAL PRIMARY KEY,
        ts BIGINT NOT NULL,
        exchange TEXT NOT NULL,
        direction TEXT NOT NULL,
        pct DOUBLE PRECISION NOT NULL,
        quote_volume_usd DOUBLE PRECISION NOT NULL,
        window_mean_usd DOUBLE PRECISION NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts (created_at);`,
}

// PostgresStore keeps observations and alerts in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the tables and indexes when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, stmt := range schemaStatements {
		if _, execErr := pool.Exec(ctx, stmt); execErr != nil {
			return fmt.Errorf("ensure schema: %w", execErr)
		}
	}
	return nil
}

// Append persists one observation row.
func (s *PostgresStore) Append(ctx context.Context, row VolumeRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertVolumeSQL,
		row.TS,
		row.Exchange,
		row.BaseVolumeBTC,
		row.QuoteVolumeUSD,
	); execErr != nil {
		return fmt.Errorf("append volume row: %w", execErr)
	}
	return nil
}

// Query returns one exchange's rows with ts strictly after sinceTS.
func (s *PostgresStore) Query(ctx context.Context, exchange string, sinceTS int64) ([]VolumeRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listVolumesSinceSQL, exchange, sinceTS)
	if queryErr != nil {
		return nil, fmt.Errorf("query volume rows: %w", queryErr)
	}
	defer rows.Close()

	return collectVolumeRows(rows, 0)
}

// ListRecent returns the newest rows ordered by descending ts, optionally
// narrowed to one exchange.
func (s *PostgresStore) ListRecent(ctx context.Context, exchange string, limit int) ([]VolumeRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var (
		rows     pgx.Rows
		queryErr error
	)
	if exchange == "" {
		rows, queryErr = pool.Query(ctx, listRecentVolumesSQL, limit)
	} else {
		rows, queryErr = pool.Query(ctx, listRecentVolumesForExchangeSQL, exchange, limit)
	}
	if queryErr != nil {
		return nil, fmt.Errorf("list recent volume rows: %w", queryErr)
	}
	defer rows.Close()

	return collectVolumeRows(rows, limit)
}

// ListBetween returns rows with from <= ts < to ordered by ascending ts.
func (s *PostgresStore) ListBetween(ctx context.Context, from, to int64) ([]VolumeRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listVolumesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list volume rows between: %w", queryErr)
	}
	defer rows.Close()

	return collectVolumeRows(rows, 0)
}

// CountSamples counts stored observation rows.
func (s *PostgresStore) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countVolumesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count volume rows: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission and returns the stored row.
func (s *PostgresStore) InsertAlert(ctx context.Context, alert AlertRow) (AlertRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRow{}, err
	}

	row := pool.QueryRow(ctx, insertAlertRowSQL,
		alert.TS,
		alert.Exchange,
		alert.Direction,
		alert.Pct,
		alert.QuoteVolumeUSD,
		alert.WindowMeanUSD,
	)

	var rec AlertRow
	if scanErr := row.Scan(
		&rec.ID,
		&rec.TS,
		&rec.Exchange,
		&rec.Direction,
		&rec.Pct,
		&rec.QuoteVolumeUSD,
		&rec.WindowMeanUSD,
		&rec.CreatedAt,
	); scanErr != nil {
		return AlertRow{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists the most recent alerts, optionally narrowed to one
// exchange.
func (s *PostgresStore) ListRecentAlerts(ctx context.Context, exchange string, limit int) ([]AlertRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var (
		rows     pgx.Rows
		queryErr error
	)
	if exchange == "" {
		rows, queryErr = pool.Query(ctx, listRecentAlertRowsSQL, limit)
	} else {
		rows, queryErr = pool.Query(ctx, listRecentAlertRowsForExchangeSQL, exchange, limit)
	}
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRow, 0, limit)
	for rows.Next() {
		var rec AlertRow
		if err := rows.Scan(
			&rec.ID,
			&rec.TS,
			&rec.Exchange,
			&rec.Direction,
			&rec.Pct,
			&rec.QuoteVolumeUSD,
			&rec.WindowMeanUSD,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func collectVolumeRows(rows pgx.Rows, sizeHint int) ([]VolumeRow, error) {
	out := make([]VolumeRow, 0, sizeHint)
	for rows.Next() {
		var row VolumeRow
		if err := rows.Scan(
			&row.TS,
			&row.Exchange,
			&row.BaseVolumeBTC,
			&row.QuoteVolumeUSD,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

var _ Store = (*PostgresStore)(nil)
