// Command wb-price-export retrieves prices for the configured seller
// cabinets and writes them to a spreadsheet.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seller-tools/wb-price-export/internal/articles"
	"github.com/seller-tools/wb-price-export/internal/cabinet"
	"github.com/seller-tools/wb-price-export/internal/config"
	"github.com/seller-tools/wb-price-export/internal/export"
	"github.com/seller-tools/wb-price-export/pkg/client"
	"github.com/seller-tools/wb-price-export/pkg/goods"
	"github.com/seller-tools/wb-price-export/pkg/logging"
	"github.com/seller-tools/wb-price-export/pkg/metrics"
	"github.com/seller-tools/wb-price-export/pkg/ratelimit"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", os.Getenv("WB_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger, _ := logging.Setup(logging.DefaultConfig())
		logger.Error().Err(err).Msg("Configuration error")
		return 1
	}

	logger, err := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
		Dir:    cfg.LogsDir,
	})
	if err != nil {
		logger, _ = logging.Setup(logging.DefaultConfig())
		logger.Error().Err(err).Msg("Logging setup failed")
		return 1
	}

	logger.Info().
		Int("cabinets", len(cfg.Cabinets)).
		Dur("request_delay", cfg.RequestDelay).
		Msg("Starting price export")

	ctx := context.Background()

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
			if err := http.ListenAndServe(cfg.MetricsAddr, metrics.Handler()); err != nil {
				logger.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	window := ratelimit.NewWindow(ratelimit.RealClock{}, windowStore(ctx, cfg), logging.NewLogger("ratelimit"))
	if err := window.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("Could not restore rate window state")
	}

	factory := func(cab cabinet.Cabinet) (cabinet.PriceFetcher, error) {
		clientCfg := client.DefaultConfig(cab.APIKey)
		clientCfg.RequestDelay = cfg.RequestDelay
		c, err := client.New(clientCfg)
		if err != nil {
			return nil, err
		}
		return goods.NewFetcher(c, window), nil
	}

	orchestrator := cabinet.New(articles.NewReader(cfg.ArticlesFile), factory)
	records := orchestrator.Run(ctx, cabinetsFromConfig(cfg))

	logger.Info().Int("records", len(records)).Msg("Processing complete")

	if len(records) == 0 {
		logger.Warn().Msg("No data to export")
		return 0
	}

	path, err := export.WritePrices(records, cfg.OutputDir)
	if err != nil {
		logger.Error().Err(err).Msg("Export failed")
		return 1
	}

	logger.Info().Str("file", path).Msg("Price export finished")
	return 0
}

// windowStore returns the shared rate-window store when Redis is
// configured and reachable, nil otherwise.
func windowStore(ctx context.Context, cfg *config.Config) ratelimit.Store {
	if cfg.RedisAddr == "" {
		return nil
	}

	logger := logging.NewLogger("main")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn().
			Err(err).
			Str("addr", cfg.RedisAddr).
			Msg("Redis unreachable, rate window state stays in-memory")
		return nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Sharing rate window state via Redis")
	return ratelimit.NewRedisStore(redisClient)
}

// cabinetsFromConfig converts config entries to cabinets.
func cabinetsFromConfig(cfg *config.Config) []cabinet.Cabinet {
	cabinets := make([]cabinet.Cabinet, 0, len(cfg.Cabinets))
	for _, c := range cfg.Cabinets {
		cabinets = append(cabinets, cabinet.Cabinet{
			Name:   c.Name,
			ID:     c.ID,
			APIKey: c.APIKey,
		})
	}
	return cabinets
}
