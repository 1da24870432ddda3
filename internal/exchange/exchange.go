package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ID identifies one of the supported derivatives venues.
type ID string

const (
	Binance ID = "binance"
	Bybit   ID = "bybit"
	OKX     ID = "okx"
	Deribit ID = "deribit"
)

// All returns the full set of supported venues in a stable order.
func All() []ID {
	return []ID{Binance, Bybit, OKX, Deribit}
}

// Parse maps a config-supplied name onto a venue identifier.
func Parse(name string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(name)))
	switch id {
	case Binance, Bybit, OKX, Deribit:
		return id, nil
	}
	return "", fmt.Errorf("unknown exchange %q", name)
}

// Known reports whether name resolves to a supported venue.
func Known(name string) bool {
	_, err := Parse(name)
	return err == nil
}

// VolumeSample is the raw 24h volume reading for BTC perpetuals on one venue.
// Venues report volume in base units (BTC), quote units (USD/USDT), or both;
// absent figures stay nil and are derived downstream from ReferencePrice.
type VolumeSample struct {
	Exchange       ID
	Timestamp      time.Time
	BaseVolume     *decimal.Decimal
	QuoteVolume    *decimal.Decimal
	ReferencePrice decimal.Decimal
}

// Adapter fetches the current 24h volume sample for one venue. Each call is
// independent; retry policy belongs to the caller, not the adapter.
type Adapter interface {
	ID() ID
	Fetch(ctx context.Context) (VolumeSample, error)
}
