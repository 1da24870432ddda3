package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	deribitTickerPath = "/api/v2/public/ticker"
	deribitInstrument = "BTC-PERPETUAL"
)

// DeribitOptions parameterise the Deribit adapter.
type DeribitOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// DeribitAdapter reads the public ticker for the BTC perpetual. Deribit
// reports 24h volume in BTC, so the sample carries the base figure plus the
// last price and leaves the USD figure to be derived.
type DeribitAdapter struct {
	opts    DeribitOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewDeribit constructs a Deribit adapter.
func NewDeribit(opts DeribitOptions, logger zerolog.Logger) *DeribitAdapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.deribit.com"
	}

	return &DeribitAdapter{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "deribit_adapter").Logger(),
	}
}

func (a *DeribitAdapter) ID() ID { return Deribit }

// Fetch reads the BTC-PERPETUAL ticker.
func (a *DeribitAdapter) Fetch(ctx context.Context) (VolumeSample, error) {
	endpoint := fmt.Sprintf("%s%s?instrument_name=%s", a.baseURL, deribitTickerPath, deribitInstrument)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return VolumeSample{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(a.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return VolumeSample{}, fmt.Errorf("deribit ticker: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return VolumeSample{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return VolumeSample{}, fmt.Errorf("deribit api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded deribitTickerResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return VolumeSample{}, fmt.Errorf("deribit decode ticker: %w", err)
	}
	if decoded.Error != nil {
		return VolumeSample{}, fmt.Errorf("deribit api error (code %d): %s", decoded.Error.Code, decoded.Error.Message)
	}

	res := decoded.Result
	price := decimal.NewFromFloat(res.LastPrice)
	if price.Sign() <= 0 {
		price = decimal.NewFromFloat(res.IndexPrice)
	}
	base := decimal.NewFromFloat(res.Stats.Volume)

	ts := time.Now().UTC()
	if res.Timestamp > 0 {
		ts = time.UnixMilli(res.Timestamp).UTC()
	}

	return VolumeSample{
		Exchange:       Deribit,
		Timestamp:      ts,
		BaseVolume:     &base,
		ReferencePrice: price,
	}, nil
}

type deribitTickerResponse struct {
	Result deribitTickerResult `json:"result"`
	Error  *deribitError       `json:"error"`
}

type deribitTickerResult struct {
	Timestamp  int64        `json:"timestamp"`
	LastPrice  float64      `json:"last_price"`
	IndexPrice float64      `json:"index_price"`
	Stats      deribitStats `json:"stats"`
}

type deribitStats struct {
	Volume    float64 `json:"volume"`
	VolumeUSD float64 `json:"volume_usd"`
}

type deribitError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var _ Adapter = (*DeribitAdapter)(nil)
