package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type volumeRecord struct {
	TS             int64   `gorm:"column:ts;not null;index:idx_vol_ts_ex,priority:1"`
	Exchange       string  `gorm:"column:exchange;not null;index:idx_vol_ts_ex,priority:2"`
	BaseVolumeBTC  float64 `gorm:"column:base_volume_btc"`
	QuoteVolumeUSD float64 `gorm:"column:quote_volume_usd"`
}

func (volumeRecord) TableName() string { return "volumes" }

type alertRecord struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	TS             int64     `gorm:"column:ts;not null;index"`
	Exchange       string    `gorm:"column:exchange;not null"`
	Direction      string    `gorm:"column:direction;not null"`
	Pct            float64   `gorm:"column:pct;not null"`
	QuoteVolumeUSD float64   `gorm:"column:quote_volume_usd;not null"`
	WindowMeanUSD  float64   `gorm:"column:window_mean_usd;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;index"`
}

func (alertRecord) TableName() string { return "alerts" }

// SQLiteStore keeps observations and alerts in a local sqlite file.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the sqlite database at path and
// migrates the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("storage.sqlite.path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&volumeRecord{}, &alertRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) handle() (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

// Append persists one observation row.
func (s *SQLiteStore) Append(ctx context.Context, row VolumeRow) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	rec := volumeRecord{
		TS:             row.TS,
		Exchange:       row.Exchange,
		BaseVolumeBTC:  row.BaseVolumeBTC,
		QuoteVolumeUSD: row.QuoteVolumeUSD,
	}
	if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("append volume row: %w", err)
	}
	return nil
}

// Query returns one exchange's rows with ts strictly after sinceTS.
func (s *SQLiteStore) Query(ctx context.Context, exchange string, sinceTS int64) ([]VolumeRow, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	var recs []volumeRecord
	if err := db.WithContext(ctx).
		Where("exchange = ? AND ts > ?", exchange, sinceTS).
		Order("ts").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query volume rows: %w", err)
	}
	return volumeRowsFromRecords(recs), nil
}

// ListRecent returns the newest rows ordered by descending ts, optionally
// narrowed to one exchange.
func (s *SQLiteStore) ListRecent(ctx context.Context, exchange string, limit int) ([]VolumeRow, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	query := db.WithContext(ctx).Order("ts DESC").Limit(limit)
	if exchange != "" {
		query = query.Where("exchange = ?", exchange)
	}
	var recs []volumeRecord
	if err := query.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list recent volume rows: %w", err)
	}
	return volumeRowsFromRecords(recs), nil
}

// ListBetween returns rows with from <= ts < to ordered by ascending ts.
func (s *SQLiteStore) ListBetween(ctx context.Context, from, to int64) ([]VolumeRow, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	var recs []volumeRecord
	if err := db.WithContext(ctx).
		Where("ts >= ? AND ts < ?", from, to).
		Order("ts").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list volume rows between: %w", err)
	}
	return volumeRowsFromRecords(recs), nil
}

// CountSamples counts stored observation rows.
func (s *SQLiteStore) CountSamples(ctx context.Context) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := db.WithContext(ctx).Model(&volumeRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count volume rows: %w", err)
	}
	return count, nil
}

// InsertAlert persists an alert emission and returns the stored row.
func (s *SQLiteStore) InsertAlert(ctx context.Context, alert AlertRow) (AlertRow, error) {
	db, err := s.handle()
	if err != nil {
		return AlertRow{}, err
	}
	rec := alertRecord{
		TS:             alert.TS,
		Exchange:       alert.Exchange,
		Direction:      alert.Direction,
		Pct:            alert.Pct,
		QuoteVolumeUSD: alert.QuoteVolumeUSD,
		WindowMeanUSD:  alert.WindowMeanUSD,
	}
	if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
		return AlertRow{}, fmt.Errorf("insert alert: %w", err)
	}
	return alertRowFromRecord(rec), nil
}

// ListRecentAlerts lists the most recent alerts, optionally narrowed to one
// exchange.
func (s *SQLiteStore) ListRecentAlerts(ctx context.Context, exchange string, limit int) ([]AlertRow, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	query := db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if exchange != "" {
		query = query.Where("exchange = ?", exchange)
	}
	var recs []alertRecord
	if err := query.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list recent alerts: %w", err)
	}
	alerts := make([]AlertRow, 0, len(recs))
	for _, rec := range recs {
		alerts = append(alerts, alertRowFromRecord(rec))
	}
	return alerts, nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sqlite handle: %w", err)
	}
	return sqlDB.Close()
}

func volumeRowsFromRecords(recs []volumeRecord) []VolumeRow {
	rows := make([]VolumeRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, VolumeRow{
			TS:             rec.TS,
			Exchange:       rec.Exchange,
			BaseVolumeBTC:  rec.BaseVolumeBTC,
			QuoteVolumeUSD: rec.QuoteVolumeUSD,
		})
	}
	return rows
}

func alertRowFromRecord(rec alertRecord) AlertRow {
	return AlertRow{
		ID:             rec.ID,
		TS:             rec.TS,
		Exchange:       rec.Exchange,
		Direction:      rec.Direction,
		Pct:            rec.Pct,
		QuoteVolumeUSD: rec.QuoteVolumeUSD,
		WindowMeanUSD:  rec.WindowMeanUSD,
		CreatedAt:      rec.CreatedAt,
	}
}

var _ Store = (*SQLiteStore)(nil)
