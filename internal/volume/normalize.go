package volume

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"futures-volume-alerts/internal/exchange"
)

var (
	// ErrInsufficientData marks a sample missing the figures needed to
	// produce a normalized observation.
	ErrInsufficientData = errors.New("volume: insufficient data to normalize sample")
	// ErrInvalidSample marks a sample whose figures are out of domain.
	ErrInvalidSample = errors.New("volume: invalid sample")
)

// Observation is the canonical, USD-comparable form of a venue reading.
// QuoteVolumeUSD is always populated; it is the comparison metric for
// change detection. ReferencePrice rides along for alert rendering and is
// not persisted.
type Observation struct {
	Exchange       exchange.ID
	Timestamp      time.Time
	BaseVolumeBTC  decimal.Decimal
	QuoteVolumeUSD decimal.Decimal
	ReferencePrice decimal.Decimal
}

// Normalize converts a raw venue sample into an Observation. Pure function:
// the same sample always yields the same observation.
//
// A sample must carry at least one volume figure. Whichever figure is
// missing is derived through ReferencePrice, so a missing or zero price is
// ErrInsufficientData whenever derivation is needed. Negative volumes or a
// negative price are ErrInvalidSample regardless of what else is present.
func Normalize(sample exchange.VolumeSample) (Observation, error) {
	base := sample.BaseVolume
	quote := sample.QuoteVolume
	price := sample.ReferencePrice

	if base == nil && quote == nil {
		return Observation{}, fmt.Errorf("%w: %s reported no volume figures", ErrInsufficientData, sample.Exchange)
	}
	if base != nil && base.IsNegative() {
		return Observation{}, fmt.Errorf("%w: %s base volume %s is negative", ErrInvalidSample, sample.Exchange, base)
	}
	if quote != nil && quote.IsNegative() {
		return Observation{}, fmt.Errorf("%w: %s quote volume %s is negative", ErrInvalidSample, sample.Exchange, quote)
	}
	if price.IsNegative() {
		return Observation{}, fmt.Errorf("%w: %s reference price %s is negative", ErrInvalidSample, sample.Exchange, price)
	}

	obs := Observation{
		Exchange:       sample.Exchange,
		Timestamp:      sample.Timestamp.UTC(),
		ReferencePrice: price,
	}

	switch {
	case base != nil && quote != nil:
		obs.BaseVolumeBTC = *base
		obs.QuoteVolumeUSD = *quote
	case quote == nil:
		if !price.IsPositive() {
			return Observation{}, fmt.Errorf("%w: %s needs a positive reference price to derive quote volume", ErrInsufficientData, sample.Exchange)
		}
		obs.BaseVolumeBTC = *base
		obs.QuoteVolumeUSD = base.Mul(price)
	default:
		if !price.IsPositive() {
			return Observation{}, fmt.Errorf("%w: %s needs a positive reference price to derive base volume", ErrInsufficientData, sample.Exchange)
		}
		obs.QuoteVolumeUSD = *quote
		obs.BaseVolumeBTC = quote.Div(price)
	}

	return obs, nil
}
