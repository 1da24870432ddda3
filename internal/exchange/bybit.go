package exchange

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	bybitLinearSymbol  = bybit.SymbolV5("BTCUSDT")
	bybitInverseSymbol = bybit.SymbolV5("BTCUSD")
)

// BybitAdapter reads V5 tickers for the linear (USDT) and inverse (coin)
// BTC perpetuals. Bybit reports turnover in the quote currency, so the
// sample carries quote volume plus last price and leaves the base figure
// to be derived.
type BybitAdapter struct {
	client *bybit.Client
	logger zerolog.Logger
}

// NewBybit builds the Bybit adapter. The SDK carries no per-call context,
// so the fetch deadline is enforced through the HTTP client timeout.
func NewBybit(timeout time.Duration, logger zerolog.Logger) *BybitAdapter {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	client := bybit.NewClient().WithHTTPClient(&http.Client{Timeout: timeout})
	return &BybitAdapter{
		client: client,
		logger: logger.With().Str("component", "bybit_adapter").Logger(),
	}
}

func (a *BybitAdapter) ID() ID { return Bybit }

// Fetch combines the linear and inverse perpetual tickers. The linear market
// is required; the inverse leg only enriches the total.
func (a *BybitAdapter) Fetch(ctx context.Context) (VolumeSample, error) {
	linear, err := a.tickerItem(bybit.CategoryV5Linear, bybitLinearSymbol)
	if err != nil {
		return VolumeSample{}, fmt.Errorf("bybit linear ticker: %w", err)
	}

	quote, err := decimal.NewFromString(linear.Turnover24H)
	if err != nil {
		return VolumeSample{}, fmt.Errorf("bybit parse turnover24h: %w", err)
	}
	price, err := decimal.NewFromString(linear.LastPrice)
	if err != nil {
		return VolumeSample{}, fmt.Errorf("bybit parse lastPrice: %w", err)
	}

	if inverse, err := a.tickerItem(bybit.CategoryV5Inverse, bybitInverseSymbol); err != nil {
		a.logger.Warn().Err(err).Msg("inverse ticker unavailable; reporting linear only")
	} else if invTurnover, err := decimal.NewFromString(inverse.Turnover24H); err != nil {
		return VolumeSample{}, fmt.Errorf("bybit parse inverse turnover24h: %w", err)
	} else {
		// inverse turnover24h is already quoted in USD
		quote = quote.Add(invTurnover)
	}

	return VolumeSample{
		Exchange:       Bybit,
		Timestamp:      time.Now().UTC(),
		QuoteVolume:    &quote,
		ReferencePrice: price,
	}, nil
}

func (a *BybitAdapter) tickerItem(category bybit.CategoryV5, symbol bybit.SymbolV5) (bybit.V5GetTickersLinearInverseItem, error) {
	resp, err := a.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: category,
		Symbol:   &symbol,
	})
	if err != nil {
		return bybit.V5GetTickersLinearInverseItem{}, err
	}
	if resp.Result.LinearInverse == nil || len(resp.Result.LinearInverse.List) == 0 {
		return bybit.V5GetTickersLinearInverseItem{}, fmt.Errorf("empty ticker list for %s", symbol)
	}
	return resp.Result.LinearInverse.List[0], nil
}

var _ Adapter = (*BybitAdapter)(nil)
