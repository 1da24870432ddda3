package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	okxTickerPath     = "/api/v5/market/ticker"
	okxUSDTSwapInstID = "BTC-USDT-SWAP"
	okxCoinSwapInstID = "BTC-USD-SWAP"
)

// OKXOptions parameterise the OKX adapter.
type OKXOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// OKXAdapter reads the public ticker for both BTC swaps. The USDT swap
// reports volCcy24h in the quote currency; the coin swap reports vol24h in
// contracts of 1 BTC each.
type OKXAdapter struct {
	opts    OKXOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewOKX constructs an OKX adapter.
func NewOKX(opts OKXOptions, logger zerolog.Logger) *OKXAdapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.okx.com"
	}

	return &OKXAdapter{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "okx_adapter").Logger(),
	}
}

func (a *OKXAdapter) ID() ID { return OKX }

// Fetch combines the USDT-margined and coin-margined swap tickers. The USDT
// swap is required; the coin swap only enriches the totals.
func (a *OKXAdapter) Fetch(ctx context.Context) (VolumeSample, error) {
	usdt, err := a.ticker(ctx, okxUSDTSwapInstID)
	if err != nil {
		return VolumeSample{}, fmt.Errorf("okx usdt swap ticker: %w", err)
	}

	quote, err := decimal.NewFromString(usdt.VolCcy24h)
	if err != nil {
		return VolumeSample{}, fmt.Errorf("okx parse volCcy24h: %w", err)
	}
	price, err := decimal.NewFromString(usdt.Last)
	if err != nil {
		return VolumeSample{}, fmt.Errorf("okx parse last: %w", err)
	}
	if price.Sign() <= 0 {
		return VolumeSample{}, fmt.Errorf("okx ticker returned non-positive price %q", usdt.Last)
	}
	base := quote.Div(price)

	ts := time.Now().UTC()
	if ms, err := strconv.ParseInt(usdt.TS, 10, 64); err == nil {
		ts = time.UnixMilli(ms).UTC()
	}

	if coin, err := a.ticker(ctx, okxCoinSwapInstID); err != nil {
		a.logger.Warn().Err(err).Msg("coin swap ticker unavailable; reporting usdt swap only")
	} else if contracts, err := decimal.NewFromString(coin.Vol24h); err != nil {
		return VolumeSample{}, fmt.Errorf("okx parse vol24h: %w", err)
	} else {
		// 1 BTC per BTC-USD-SWAP contract
		base = base.Add(contracts)
		quote = quote.Add(contracts.Mul(price))
	}

	return VolumeSample{
		Exchange:       OKX,
		Timestamp:      ts,
		BaseVolume:     &base,
		QuoteVolume:    &quote,
		ReferencePrice: price,
	}, nil
}

func (a *OKXAdapter) ticker(ctx context.Context, instID string) (okxTicker, error) {
	endpoint := fmt.Sprintf("%s%s?instId=%s", a.baseURL, okxTickerPath, instID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return okxTicker{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(a.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return okxTicker{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return okxTicker{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return okxTicker{}, fmt.Errorf("okx api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded okxTickerResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return okxTicker{}, err
	}
	if decoded.Code != "0" {
		return okxTicker{}, fmt.Errorf("okx api error (code %s): %s", decoded.Code, decoded.Msg)
	}
	if len(decoded.Data) == 0 {
		return okxTicker{}, fmt.Errorf("okx returned no ticker for %s", instID)
	}

	return decoded.Data[0], nil
}

type okxTickerResponse struct {
	Code string      `json:"code"`
	Msg  string      `json:"msg"`
	Data []okxTicker `json:"data"`
}

type okxTicker struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	Vol24h    string `json:"vol24h"`
	VolCcy24h string `json:"volCcy24h"`
	TS        string `json:"ts"`
}

var _ Adapter = (*OKXAdapter)(nil)
