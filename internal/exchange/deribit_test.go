package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDeribitFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("instrument_name") != deribitInstrument {
			t.Fatalf("unexpected instrument %q", r.URL.Query().Get("instrument_name"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"timestamp":   1755700000000,
				"last_price":  60000.0,
				"index_price": 59990.0,
				"stats":       map[string]any{"volume": 8500.25, "volume_usd": 510015000.0},
			},
		})
	}))
	defer srv.Close()

	a := NewDeribit(DeribitOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	sample, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}

	if sample.Exchange != Deribit {
		t.Fatalf("wrong exchange id: %s", sample.Exchange)
	}
	if sample.BaseVolume == nil || !sample.BaseVolume.Equal(decimal.NewFromFloat(8500.25)) {
		t.Fatalf("base volume mismatch: %v", sample.BaseVolume)
	}
	if sample.QuoteVolume != nil {
		t.Fatal("deribit reports base units only; quote volume must stay unset")
	}
	if !sample.ReferencePrice.Equal(decimal.NewFromInt(60000)) {
		t.Fatalf("price mismatch: %s", sample.ReferencePrice)
	}
	if sample.Timestamp != time.UnixMilli(1755700000000).UTC() {
		t.Fatalf("timestamp should come from the ticker, got %s", sample.Timestamp)
	}
}

func TestDeribitFetchIndexPriceFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"timestamp":   1755700000000,
				"last_price":  0.0,
				"index_price": 59990.0,
				"stats":       map[string]any{"volume": 100.0},
			},
		})
	}))
	defer srv.Close()

	a := NewDeribit(DeribitOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	sample, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if !sample.ReferencePrice.Equal(decimal.NewFromFloat(59990)) {
		t.Fatalf("should fall back to index price, got %s", sample.ReferencePrice)
	}
}

func TestDeribitFetchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": -32602, "message": "invalid instrument"},
		})
	}))
	defer srv.Close()

	a := NewDeribit(DeribitOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("api error payload should fail the fetch")
	}
}
