package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"futures-volume-alerts/internal/volume"
)

// Notifier delivers a fired alert to its channel.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// TelegramNotifier pushes alert text through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs the Telegram channel.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify renders the alert and calls the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, alert Alert) error {
	payload := map[string]string{
		"chat_id":    n.chatID,
		"text":       renderMessage(alert),
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("exchange", string(alert.Exchange)).
		Str("direction", alert.Direction.String()).
		Msg("alert delivered (telegram)")
	return nil
}

func renderMessage(alert Alert) string {
	arrow := "↑"
	if alert.Direction == volume.Decrease {
		arrow = "↓"
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("BTC futures volume %s %s%% over last %dm on %s.\n",
		arrow, alert.Pct.StringFixed(1), int(alert.Window.Minutes()), strings.ToUpper(string(alert.Exchange))))
	builder.WriteString(fmt.Sprintf("Current 24h: %s (window avg %s) | Price ≈ $%s\n",
		fmtUSD(alert.LatestUSD), fmtUSD(alert.WindowMeanUSD), alert.Price.StringFixed(0)))
	builder.WriteString(fmt.Sprintf("UTC: %s", alert.At.UTC().Format("2006-01-02 15:04:05")))
	return builder.String()
}

var usdScales = []struct {
	floor  decimal.Decimal
	suffix string
}{
	{decimal.New(1, 12), "T"},
	{decimal.New(1, 9), "B"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 3), "K"},
}

func fmtUSD(v decimal.Decimal) string {
	for _, scale := range usdScales {
		if v.GreaterThanOrEqual(scale.floor) {
			return "$" + v.Div(scale.floor).StringFixed(2) + scale.suffix
		}
	}
	return "$" + v.StringFixed(2)
}

var _ Notifier = (*TelegramNotifier)(nil)
