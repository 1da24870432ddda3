package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"futures-volume-alerts/internal/exchange"
	"futures-volume-alerts/internal/volume"
)

func sampleAlert() Alert {
	return Alert{
		Exchange:      exchange.Binance,
		Direction:     volume.Increase,
		Pct:           decimal.NewFromInt(15),
		LatestUSD:     decimal.NewFromInt(1_150_000_000),
		WindowMeanUSD: decimal.NewFromInt(1_000_000_000),
		Price:         decimal.NewFromInt(43210),
		Window:        15 * time.Minute,
		At:            time.Date(2026, 8, 21, 14, 5, 5, 0, time.UTC),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if received["parse_mode"] != "HTML" {
		t.Fatalf("unexpected parse_mode: %#v", received)
	}
	if !strings.Contains(received["text"], "BINANCE") {
		t.Fatalf("text should mention the venue: %q", received["text"])
	}
}

func TestTelegramNotifierRejectsNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleAlert()); err == nil {
		t.Fatal("ok=false should be an error")
	}
}

func TestTelegramNotifierRejectsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleAlert()); err == nil {
		t.Fatal("non-2xx status should be an error")
	}
}

func TestRenderMessage(t *testing.T) {
	got := renderMessage(sampleAlert())
	want := "BTC futures volume ↑ 15.0% over last 15m on BINANCE.\n" +
		"Current 24h: $1.15B (window avg $1.00B) | Price ≈ $43210\n" +
		"UTC: 2026-08-21 14:05:05"
	if got != want {
		t.Fatalf("rendered message mismatch:\ngot  %q\nwant %q", got, want)
	}
}

func TestRenderMessageDecreaseArrow(t *testing.T) {
	alert := sampleAlert()
	alert.Direction = volume.Decrease
	alert.Pct = decimal.NewFromFloat(-10)
	if got := renderMessage(alert); !strings.Contains(got, "↓ -10.0%") {
		t.Fatalf("decrease should render a down arrow and signed pct: %q", got)
	}
}

func TestFmtUSD(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1200000000000", "$1.20T"},
		{"1150000000", "$1.15B"},
		{"2500000", "$2.50M"},
		{"1000", "$1.00K"},
		{"999", "$999.00"},
		{"0", "$0.00"},
	}
	for _, tc := range cases {
		v, err := decimal.NewFromString(tc.in)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.in, err)
		}
		if got := fmtUSD(v); got != tc.want {
			t.Fatalf("fmtUSD(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
