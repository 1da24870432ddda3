package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/delivery"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	binanceUSDTSymbol = "BTCUSDT"
	binanceCoinSymbol = "BTCUSD_PERP"
)

// BinanceAdapter reads 24h stats for both Binance perpetual markets: the
// USDT-margined contract on fapi and the coin-margined contract on dapi.
// Figures from both markets are combined into a single sample.
type BinanceAdapter struct {
	usdtM  *futures.Client
	coinM  *delivery.Client
	logger zerolog.Logger
}

// NewBinance builds the Binance adapter. Public market data needs no keys.
func NewBinance(logger zerolog.Logger) *BinanceAdapter {
	return &BinanceAdapter{
		usdtM:  futures.NewClient("", ""),
		coinM:  delivery.NewClient("", ""),
		logger: logger.With().Str("component", "binance_adapter").Logger(),
	}
}

func (a *BinanceAdapter) ID() ID { return Binance }

// Fetch combines the USDT-margined and coin-margined 24h tickers. The
// USDT-margined market is required; the coin-margined leg only enriches the
// totals, so its failure downgrades to a partial sample.
func (a *BinanceAdapter) Fetch(ctx context.Context) (VolumeSample, error) {
	stats, err := a.usdtM.NewListPriceChangeStatsService().Symbol(binanceUSDTSymbol).Do(ctx)
	if err != nil {
		return VolumeSample{}, fmt.Errorf("binance usdt-m 24h ticker: %w", err)
	}
	if len(stats) == 0 {
		return VolumeSample{}, fmt.Errorf("binance usdt-m 24h ticker: empty response for %s", binanceUSDTSymbol)
	}
	usdt := stats[0]

	quote, err := decimal.NewFromString(usdt.QuoteVolume)
	if err != nil {
		return VolumeSample{}, fmt.Errorf("binance parse quoteVolume: %w", err)
	}
	base, err := decimal.NewFromString(usdt.Volume)
	if err != nil {
		return VolumeSample{}, fmt.Errorf("binance parse volume: %w", err)
	}
	price, err := decimal.NewFromString(usdt.LastPrice)
	if err != nil {
		return VolumeSample{}, fmt.Errorf("binance parse lastPrice: %w", err)
	}
	if price.IsZero() && base.IsPositive() {
		// ticker carried no trade price; derive it from the volumes
		price = quote.Div(base)
	}

	ts := time.UnixMilli(usdt.CloseTime).UTC()

	coinBase := decimal.Zero
	coinStats, err := a.coinM.NewListPriceChangeStatsService().Symbol(binanceCoinSymbol).Do(ctx)
	switch {
	case err != nil:
		a.logger.Warn().Err(err).Msg("coin-m 24h ticker unavailable; reporting usdt-m only")
	case len(coinStats) == 0:
		a.logger.Warn().Str("symbol", binanceCoinSymbol).Msg("coin-m 24h ticker empty; reporting usdt-m only")
	default:
		coinBase, err = decimal.NewFromString(coinStats[0].BaseVolume)
		if err != nil {
			return VolumeSample{}, fmt.Errorf("binance parse baseVolume: %w", err)
		}
	}

	baseTotal := base.Add(coinBase)
	quoteTotal := quote.Add(coinBase.Mul(price))

	return VolumeSample{
		Exchange:       Binance,
		Timestamp:      ts,
		BaseVolume:     &baseTotal,
		QuoteVolume:    &quoteTotal,
		ReferencePrice: price,
	}, nil
}

var _ Adapter = (*BinanceAdapter)(nil)
