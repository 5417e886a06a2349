package goods

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/seller-tools/wb-price-export/pkg/client"
	"github.com/seller-tools/wb-price-export/pkg/ratelimit"
)

const (
	// BatchSize is the maximum number of ids per filter request.
	BatchSize = 100

	// ListingPageSize is the page size for the unpaged listing fallback.
	ListingPageSize = 1000

	// DefaultRetryAfter is the 429 backoff when the server names none.
	DefaultRetryAfter = 6 * time.Second

	// maxRateLimitRetries bounds how often one batch is retried after
	// 429 before it is skipped like a transport failure.
	maxRateLimitRetries = 5
)

// Prometheus metrics for fetch strategies.
var (
	fetchBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wb_fetch_batches_total",
		Help: "Price fetch batches by strategy and outcome",
	}, []string{"strategy", "outcome"})

	fetchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wb_fetch_items_total",
		Help: "Price items retrieved by strategy",
	}, []string{"strategy"})
)

// Fetcher retrieves prices for product identifiers under the shared API
// quota. Requests are strictly sequential; all pacing goes through the
// rate window plus the transport client's own fixed delay.
type Fetcher struct {
	client *client.Client
	window *ratelimit.Window
	logger zerolog.Logger

	retryAfterDefault time.Duration
	listingPageSize   int
}

// NewFetcher creates a fetcher on top of an API client and rate window.
func NewFetcher(c *client.Client, w *ratelimit.Window) *Fetcher {
	return &Fetcher{
		client:            c,
		window:            w,
		logger:            log.With().Str("component", "fetcher").Logger(),
		retryAfterDefault: DefaultRetryAfter,
		listingPageSize:   ListingPageSize,
	}
}

// FetchPrices retrieves price records for the given raw identifiers.
// Identifiers are normalized first; numeric ones go through the bulk
// id-list strategy, and only if that yields nothing does the fetcher fall
// back to filtering a full listing. An empty result means "no data", not
// failure - the caller decides how to surface unresolved identifiers.
func (f *Fetcher) FetchPrices(ctx context.Context, articles []string) []PriceRecord {
	cleaned := NormalizeArticles(articles)
	numeric, other := SplitNumeric(cleaned)

	f.logger.Info().
		Int("articles", len(cleaned)).
		Int("numeric", len(numeric)).
		Int("other", len(other)).
		Msg("Fetching prices")

	var items []RawItem
	if len(numeric) > 0 {
		items = f.fetchByIDList(ctx, numeric)
	}

	if len(items) > 0 {
		fetchItemsTotal.WithLabelValues("id_list").Add(float64(len(items)))
		return NormalizeAll(items)
	}

	items = f.fetchByListing(ctx, cleaned)
	if len(items) > 0 {
		fetchItemsTotal.WithLabelValues("listing").Add(float64(len(items)))
	}
	return NormalizeAll(items)
}

// fetchByIDList is the bulk POST strategy: ids in batches of BatchSize,
// each request gated by the rate window. A 429 sleeps for the advertised
// retry duration and repeats the same batch; a 400 abandons the strategy
// for the remaining batches, keeping whatever already succeeded.
func (f *Fetcher) fetchByIDList(ctx context.Context, nmIDs []int64) []RawItem {
	var collected []RawItem
	totalBatches := (len(nmIDs) + BatchSize - 1) / BatchSize

	for start := 0; start < len(nmIDs); start += BatchSize {
		end := start + BatchSize
		if end > len(nmIDs) {
			end = len(nmIDs)
		}
		batch := nmIDs[start:end]
		batchNum := start/BatchSize + 1

		f.logger.Info().
			Int("batch", batchNum).
			Int("total_batches", totalBatches).
			Int("ids", len(batch)).
			Msg("Requesting price batch")

		items, abandon := f.fetchBatch(ctx, batch, batchNum)
		collected = append(collected, items...)
		if abandon {
			return collected
		}
	}

	return collected
}

// fetchBatch issues one id-list request, retrying in place on 429 up to
// maxRateLimitRetries times. abandon is true when the server rejected
// the request shape (400) and the whole strategy should stop.
func (f *Fetcher) fetchBatch(ctx context.Context, batch []int64, batchNum int) (items []RawItem, abandon bool) {
	for attempt := 1; ; attempt++ {
		f.window.Reserve(ctx)

		resp, err := f.client.GoodsFilterPost(ctx, batch)
		if err != nil {
			// Transport failure: skip this batch, keep going.
			fetchBatchesTotal.WithLabelValues("id_list", "transport_error").Inc()
			return nil, false
		}

		switch {
		case resp.OK():
			items, err := DecodeListing(resp.Body)
			if err != nil {
				f.logger.Warn().Err(err).Int("batch", batchNum).Msg("Unparsable batch response")
				fetchBatchesTotal.WithLabelValues("id_list", "bad_payload").Inc()
				return nil, false
			}
			fetchBatchesTotal.WithLabelValues("id_list", "ok").Inc()

			f.logger.Debug().
				Int("batch", batchNum).
				Int("items", len(items)).
				Msg("Batch retrieved")
			return items, false

		case resp.StatusCode == http.StatusTooManyRequests:
			fetchBatchesTotal.WithLabelValues("id_list", "rate_limited").Inc()
			if attempt >= maxRateLimitRetries {
				f.logger.Warn().
					Int("batch", batchNum).
					Int("attempts", attempt).
					Msg("Persistent rate limiting, skipping batch")
				return nil, false
			}
			retryAfter := client.RetryAfter(resp.Header, f.retryAfterDefault)
			f.window.Backoff(ctx, retryAfter)
			// Retry the same batch.

		case resp.StatusCode == http.StatusBadRequest:
			f.logger.Warn().
				Int("batch", batchNum).
				Str("body", client.Truncate(string(resp.Body), 500)).
				Str("request", fmt.Sprintf("nmList[%d]", len(batch))).
				Msg("Batch request rejected, abandoning id-list strategy")
			fetchBatchesTotal.WithLabelValues("id_list", "rejected").Inc()
			return nil, true

		default:
			f.logger.Warn().
				Int("batch", batchNum).
				Int("status", resp.StatusCode).
				Msg("Unexpected batch response status")
			fetchBatchesTotal.WithLabelValues("id_list", "error").Inc()
			return nil, false
		}
	}
}

// fetchByListing is the fallback strategy: one large unpaged listing
// request, filtered client-side to the requested identifiers.
func (f *Fetcher) fetchByListing(ctx context.Context, articles []string) []RawItem {
	f.logger.Info().Msg("Falling back to full listing filter")

	f.window.Reserve(ctx)

	resp, err := f.client.GoodsFilterGet(ctx, f.listingPageSize, 0)
	if err != nil {
		fetchBatchesTotal.WithLabelValues("listing", "transport_error").Inc()
		return nil
	}
	if !resp.OK() {
		f.logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", client.Truncate(string(resp.Body), 500)).
			Msg("Listing request failed")
		fetchBatchesTotal.WithLabelValues("listing", "error").Inc()
		return nil
	}

	items, err := DecodeListing(resp.Body)
	if err != nil {
		f.logger.Warn().Err(err).Msg("Unparsable listing response")
		fetchBatchesTotal.WithLabelValues("listing", "bad_payload").Inc()
		return nil
	}

	wanted := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		wanted[a] = struct{}{}
	}

	var matched []RawItem
	for _, item := range items {
		if matchesRequested(item, wanted) {
			matched = append(matched, item)
		}
	}

	fetchBatchesTotal.WithLabelValues("listing", "ok").Inc()
	f.logger.Info().
		Int("listed", len(items)).
		Int("matched", len(matched)).
		Int("requested", len(articles)).
		Msg("Listing filtered")

	return matched
}

// matchesRequested reports whether an item's vendor code or marketplace
// id is among the requested identifiers.
func matchesRequested(item RawItem, wanted map[string]struct{}) bool {
	if code := item.String("vendorCode"); code != "" {
		if _, ok := wanted[code]; ok {
			return true
		}
	}
	if nmID := item.Int64("nmID"); nmID != nil {
		if _, ok := wanted[fmt.Sprintf("%d", *nmID)]; ok {
			return true
		}
	}
	return false
}
