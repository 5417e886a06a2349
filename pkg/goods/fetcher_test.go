package goods

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/seller-tools/wb-price-export/internal/testutil"
	"github.com/seller-tools/wb-price-export/pkg/client"
	"github.com/seller-tools/wb-price-export/pkg/ratelimit"
)

const goodsFilterPath = "/api/v2/list/goods/filter"

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func testFetcher(t *testing.T, mock *testutil.MockWB) (*Fetcher, *fakeClock) {
	t.Helper()

	c, err := client.New(client.Config{
		APIKey:       "test-key",
		RequestDelay: 0,
		ContentURL:   mock.URL(),
		PricesURL:    mock.URL(),
	})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	clock := &fakeClock{now: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)}
	window := ratelimit.NewWindow(clock, nil, zerolog.Nop())

	return NewFetcher(c, window), clock
}

// nmListRequest mirrors the id-list request body.
type nmListRequest struct {
	NmList []int64 `json:"nmList"`
}

func postedBatchSizes(t *testing.T, mock *testutil.MockWB) []int {
	t.Helper()

	var sizes []int
	for _, body := range mock.GetRequestBodies() {
		if len(body) == 0 {
			continue
		}
		var req nmListRequest
		if err := json.Unmarshal(body, &req); err != nil {
			continue
		}
		if req.NmList != nil {
			sizes = append(sizes, len(req.NmList))
		}
	}
	return sizes
}

// 250 numeric ids must go out as exactly three batches of 100, 100, 50.
func TestFetchPrices_BatchPartitioning(t *testing.T) {
	mock := testutil.NewMockWB()
	defer mock.Close()

	mock.SetHandler(goodsFilterPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": {"listGoods": [{"nmID": 1, "price": 100}]}}`))
	})

	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 100000000+i)
	}

	f, _ := testFetcher(t, mock)
	records := f.FetchPrices(context.Background(), ids)

	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("Issued %d requests, want 3", got)
	}

	sizes := postedBatchSizes(t, mock)
	if len(sizes) != 3 || sizes[0] != 100 || sizes[1] != 100 || sizes[2] != 50 {
		t.Errorf("Batch sizes = %v, want [100 100 50]", sizes)
	}

	if len(records) != 3 {
		t.Errorf("FetchPrices() returned %d records, want 3 (one per batch)", len(records))
	}
}

// A non-empty id-list result must short-circuit the listing fallback.
func TestFetchPrices_IDListShortCircuitsListing(t *testing.T) {
	mock := testutil.NewMockWB()
	defer mock.Close()

	var getSeen bool
	mock.SetHandler(goodsFilterPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			getSeen = true
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": {"listGoods": [{"nmID": 115224606, "price": 100}]}}`))
	})

	f, _ := testFetcher(t, mock)
	records := f.FetchPrices(context.Background(), []string{"115224606"})

	if len(records) != 1 {
		t.Fatalf("FetchPrices() returned %d records, want 1", len(records))
	}
	if getSeen {
		t.Error("Listing fallback was attempted despite id-list success")
	}
}

// HTTP 400 with zero prior successes must fall through to the listing
// strategy.
func TestFetchPrices_FallsBackOn400(t *testing.T) {
	mock := testutil.NewMockWB()
	defer mock.Close()

	mock.SetHandler(goodsFilterPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errorText": "bad request"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": {"listGoods": [
			{"nmID": 115224606, "vendorCode": "ABC-001", "price": 100},
			{"nmID": 999999999, "vendorCode": "ZZZ-999", "price": 200}
		]}}`))
	})

	f, _ := testFetcher(t, mock)
	records := f.FetchPrices(context.Background(), []string{"115224606"})

	if len(records) != 1 {
		t.Fatalf("FetchPrices() returned %d records, want 1 from filtered listing", len(records))
	}
	if records[0].NmID == nil || *records[0].NmID != 115224606 {
		t.Errorf("Filtered record NmID = %v, want 115224606", records[0].NmID)
	}
}

// 429 must sleep for the advertised retry duration and repeat the same
// batch.
func TestFetchPrices_RetriesOn429(t *testing.T) {
	mock := testutil.NewMockWB()
	defer mock.Close()

	attempts := 0
	mock.SetHandler(goodsFilterPath, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": {"listGoods": [{"nmID": 115224606, "price": 100}]}}`))
	})

	f, clock := testFetcher(t, mock)
	records := f.FetchPrices(context.Background(), []string{"115224606"})

	if attempts != 2 {
		t.Errorf("Batch attempted %d times, want 2", attempts)
	}
	if len(records) != 1 {
		t.Errorf("FetchPrices() returned %d records, want 1", len(records))
	}

	var sawBackoff bool
	for _, d := range clock.sleeps {
		if d == 2*time.Second {
			sawBackoff = true
		}
	}
	if !sawBackoff {
		t.Errorf("No 2s backoff observed in sleeps %v", clock.sleeps)
	}
}

// A server that answers 429 forever must not stall the run: the batch is
// given up after a bounded number of attempts.
func TestFetchPrices_PersistentRateLimitGivesUp(t *testing.T) {
	mock := testutil.NewMockWB()
	defer mock.Close()

	postAttempts := 0
	mock.SetHandler(goodsFilterPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			postAttempts++
		}
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	f, _ := testFetcher(t, mock)
	records := f.FetchPrices(context.Background(), []string{"115224606"})

	if postAttempts != maxRateLimitRetries {
		t.Errorf("Batch attempted %d times, want %d", postAttempts, maxRateLimitRetries)
	}
	if len(records) != 0 {
		t.Errorf("FetchPrices() returned %d records, want 0", len(records))
	}
}

// The listing fallback filters by vendor code or marketplace id.
func TestFetchPrices_ListingFiltersRequested(t *testing.T) {
	mock := testutil.NewMockWB()
	defer mock.Close()

	mock.SetHandler(goodsFilterPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			// Empty id-list result forces the fallback.
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"data": {"listGoods": []}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": {"listGoods": [
			{"nmID": 115224606, "vendorCode": "OTHER", "price": 100},
			{"nmID": 222, "vendorCode": "ABC-001", "price": 200},
			{"nmID": 333, "vendorCode": "UNRELATED", "price": 300}
		]}}`))
	})

	f, _ := testFetcher(t, mock)
	records := f.FetchPrices(context.Background(), []string{"ABC-001", "115224606"})

	if len(records) != 2 {
		t.Fatalf("FetchPrices() returned %d records, want 2", len(records))
	}
}

func TestFetchPrices_EmptyWhenBothStrategiesFail(t *testing.T) {
	mock := testutil.NewMockWB()
	defer mock.Close()

	mock.SetHandler(goodsFilterPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	f, _ := testFetcher(t, mock)
	records := f.FetchPrices(context.Background(), []string{"115224606"})

	if len(records) != 0 {
		t.Errorf("FetchPrices() returned %d records, want 0", len(records))
	}
}

// URL-form identifiers resolve to the embedded id before batching.
func TestFetchPrices_URLIdentifier(t *testing.T) {
	mock := testutil.NewMockWB()
	defer mock.Close()

	mock.SetResponse(goodsFilterPath, testutil.NewListGoodsResponse(
		`[{"nmID": 115224606, "price": 100}]`))

	f, _ := testFetcher(t, mock)
	f.FetchPrices(context.Background(), []string{
		"https://www.wildberries.ru/catalog/115224606/detail.aspx",
	})

	bodies := mock.GetRequestBodies()
	if len(bodies) != 1 {
		t.Fatalf("Issued %d requests, want 1", len(bodies))
	}

	var req nmListRequest
	if err := json.Unmarshal(bodies[0], &req); err != nil {
		t.Fatalf("Bad request body: %v", err)
	}
	if len(req.NmList) != 1 || req.NmList[0] != 115224606 {
		t.Errorf("nmList = %v, want [115224606]", req.NmList)
	}
}
