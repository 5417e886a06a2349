package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	c, err := New(Config{
		APIKey:       "test-key",
		RequestDelay: 0,
		ContentURL:   serverURL,
		PricesURL:    serverURL,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() accepted empty api key")
	}

	c, err := New(Config{APIKey: "key"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.config.Timeout != 30*time.Second {
		t.Errorf("Default timeout = %v, want 30s", c.config.Timeout)
	}
	if c.config.PricesURL != PricesBaseURL {
		t.Errorf("Default prices URL = %q, want %q", c.config.PricesURL, PricesBaseURL)
	}
}

func TestDo_AuthorizationHeader(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
	}{
		{"bare key", "raw-token"},
		{"bearer prefixed key", "Bearer raw-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				w.Write([]byte(`{}`))
			}))
			defer server.Close()

			c, err := New(Config{APIKey: tt.apiKey, PricesURL: server.URL})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			if _, err := c.GoodsFilterGet(context.Background(), 10, 0); err != nil {
				t.Fatalf("GoodsFilterGet() error = %v", err)
			}

			// The credential goes out verbatim, prefixed or not.
			if gotAuth != tt.apiKey {
				t.Errorf("Authorization = %q, want %q", gotAuth, tt.apiKey)
			}
		})
	}
}

func TestDo_HTTPErrorIsResponseNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorText": "bad"}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	resp, err := c.GoodsFilterPost(context.Background(), []int64{1})

	if err != nil {
		t.Fatalf("GoodsFilterPost() error = %v, want response with status", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", resp.StatusCode)
	}
	if resp.OK() {
		t.Error("OK() = true for a 400 response")
	}
}

func TestDo_TransportFailure(t *testing.T) {
	// Nothing listens here; the request must fail in transport.
	c := testClient(t, "http://127.0.0.1:1")

	resp, err := c.GoodsFilterGet(context.Background(), 10, 0)
	if err == nil {
		t.Fatalf("GoodsFilterGet() = %v, want transport error", resp)
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Error type = %T, want *APIError", err)
	}
	if apiErr.Class != ErrorClassDNS && apiErr.Class != ErrorClassNetwork {
		t.Errorf("Error class = %q, want dns or network", apiErr.Class)
	}
}

func TestGoodsFilterGet_Params(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	if _, err := c.GoodsFilterGet(context.Background(), 1000, 0); err != nil {
		t.Fatalf("GoodsFilterGet() error = %v", err)
	}

	if gotQuery != "limit=1000&offset=0" {
		t.Errorf("Query = %q, want limit=1000&offset=0", gotQuery)
	}
}

func TestSizePrices_Params(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	if _, err := c.SizePrices(context.Background(), 115224606); err != nil {
		t.Fatalf("SizePrices() error = %v", err)
	}

	if gotPath != "/api/v2/list/goods/size/nm" {
		t.Errorf("Path = %q", gotPath)
	}
	if gotQuery != "nm=115224606" {
		t.Errorf("Query = %q, want nm=115224606", gotQuery)
	}
}

func TestAllCards_Pagination(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++

		var req struct {
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		// Full first page, short second page.
		count := req.Limit
		if req.Offset > 0 {
			count = 5
		}

		cards := make([]Card, count)
		for i := range cards {
			cards[i] = Card{
				NmID:       int64(req.Offset + i + 1),
				VendorCode: fmt.Sprintf("SKU-%d", req.Offset+i+1),
			}
		}

		var envelope cardsEnvelope
		envelope.Data.Cards = cards
		json.NewEncoder(w).Encode(envelope)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	cards, err := c.AllCards(context.Background())
	if err != nil {
		t.Fatalf("AllCards() error = %v", err)
	}

	if requests != 2 {
		t.Errorf("AllCards() issued %d requests, want 2", requests)
	}
	if len(cards) != MaxCardsPageSize+5 {
		t.Errorf("AllCards() returned %d cards, want %d", len(cards), MaxCardsPageSize+5)
	}
}

func TestAllCards_EmptyCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"cards": []}}`))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	cards, err := c.AllCards(context.Background())
	if err != nil {
		t.Fatalf("AllCards() error = %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("AllCards() = %v, want empty", cards)
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"present", "12", 12 * time.Second},
		{"absent", "", 6 * time.Second},
		{"garbage", "soon", 6 * time.Second},
		{"zero", "0", 6 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			if got := RetryAfter(h, 6*time.Second); got != tt.want {
				t.Errorf("RetryAfter(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello" {
		t.Errorf("Truncate long = %q", got)
	}
}
