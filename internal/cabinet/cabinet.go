// Package cabinet orchestrates price retrieval across seller cabinets.
package cabinet

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/seller-tools/wb-price-export/pkg/goods"
)

// Cabinet is one seller account: identity plus its API credential.
// Immutable for the run.
type Cabinet struct {
	Name   string
	ID     string
	APIKey string
}

// ArticleSource provides the ordered product identifiers to price.
type ArticleSource interface {
	Articles() ([]string, error)
}

// PriceFetcher retrieves price records for identifiers. An empty result
// means no data, not failure.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, articles []string) []goods.PriceRecord
}

// FetcherFactory builds a fetcher bound to one cabinet's credential.
type FetcherFactory func(cab Cabinet) (PriceFetcher, error)

// scheduleBatchSize is how many identifiers go to the fetcher at a time.
// Mirrors the API batch limit so progress logging lines up with requests.
const scheduleBatchSize = 100

// Orchestrator runs the export flow across all configured cabinets.
type Orchestrator struct {
	source     ArticleSource
	newFetcher FetcherFactory
	logger     zerolog.Logger
}

// New creates an orchestrator.
func New(source ArticleSource, newFetcher FetcherFactory) *Orchestrator {
	return &Orchestrator{
		source:     source,
		newFetcher: newFetcher,
		logger:     log.With().Str("component", "orchestrator").Logger(),
	}
}

// Run processes every cabinet in order and merges the results. Cabinets
// missing a credential or id are skipped with a warning; one cabinet's
// failure never stops the rest. Every identifier submitted to a batch
// that yields no data comes back as an error-marked row.
func (o *Orchestrator) Run(ctx context.Context, cabinets []Cabinet) []goods.PriceRecord {
	var all []goods.PriceRecord

	for _, cab := range cabinets {
		if cab.APIKey == "" {
			o.logger.Warn().Str("cabinet", cab.Name).Msg("Skipping cabinet, no API key")
			continue
		}
		if cab.ID == "" {
			o.logger.Warn().Str("cabinet", cab.Name).Msg("Skipping cabinet, no cabinet id")
			continue
		}

		o.logger.Info().
			Str("cabinet", cab.Name).
			Str("cabinet_id", cab.ID).
			Msg("Processing cabinet")

		records, err := o.runCabinet(ctx, cab)
		if err != nil {
			o.logger.Error().
				Err(err).
				Str("cabinet", cab.Name).
				Msg("Cabinet processing failed, continuing with remaining cabinets")
			continue
		}

		all = append(all, records...)

		o.logger.Info().
			Str("cabinet", cab.Name).
			Int("records", len(records)).
			Msg("Cabinet processed")
	}

	return all
}

// runCabinet prices one cabinet's articles.
func (o *Orchestrator) runCabinet(ctx context.Context, cab Cabinet) ([]goods.PriceRecord, error) {
	articles, err := o.source.Articles()
	if err != nil {
		return nil, fmt.Errorf("read articles: %w", err)
	}
	if len(articles) == 0 {
		o.logger.Warn().Str("cabinet", cab.Name).Msg("No articles to fetch")
		return nil, nil
	}

	fetcher, err := o.newFetcher(cab)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	o.logger.Info().
		Str("cabinet", cab.Name).
		Int("articles", len(articles)).
		Msg("Fetching prices")

	var records []goods.PriceRecord
	totalBatches := (len(articles) + scheduleBatchSize - 1) / scheduleBatchSize

	for start := 0; start < len(articles); start += scheduleBatchSize {
		end := start + scheduleBatchSize
		if end > len(articles) {
			end = len(articles)
		}
		batch := articles[start:end]
		batchNum := start/scheduleBatchSize + 1

		o.logger.Info().
			Str("cabinet", cab.Name).
			Int("batch", batchNum).
			Int("total_batches", totalBatches).
			Int("articles", len(batch)).
			Msg("Scheduling batch")

		fetched := fetcher.FetchPrices(ctx, batch)
		if len(fetched) == 0 {
			// No data for the whole batch: surface every identifier as an
			// error row rather than dropping it.
			o.logger.Warn().
				Str("cabinet", cab.Name).
				Int("batch", batchNum).
				Msg("Batch yielded no data, emitting error rows")

			for _, article := range batch {
				records = append(records, goods.ErrorRecord(cab.Name, cab.ID, article))
			}
			continue
		}

		for i := range fetched {
			fetched[i].Cabinet = cab.Name
			fetched[i].CabinetID = cab.ID
		}
		records = append(records, fetched...)
	}

	return records, nil
}
