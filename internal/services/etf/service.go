package etf

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bigrise/internal/common"
	"github.com/ternarybob/bigrise/internal/export"
	"github.com/ternarybob/bigrise/internal/httpclient"
	"github.com/ternarybob/bigrise/internal/models"
	"github.com/ternarybob/bigrise/internal/pipeline"
)

var (
	listingHeader  = []string{"name", "price", "change", "detail_url"}
	holdingsHeader = []string{"name", "price", "change", "detail_url", "holdings"}
	flatHeader     = []string{"name", "price", "change", "detail_url", "number", "item_name", "item_code", "base_price", "ratio", "value"}
)

// Service collects the ETF fund listing and each fund's constituent table,
// producing one flattened row per (fund, constituent) pair.
type Service struct {
	config *common.Config
	paths  *common.Paths
	logger arbor.ILogger
	client *httpclient.Client
}

// NewService creates the ETF collector.
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	policy := httpclient.NewRetryPolicy()
	policy.MaxAttempts = config.HTTP.MaxRetries

	client := httpclient.New(
		httpclient.WithTimeout(config.HTTP.RequestTimeout),
		httpclient.WithRetryPolicy(policy),
		httpclient.WithLogger(logger),
		httpclient.WithRateLimit(config.HTTP.RateLimit),
		httpclient.WithInsecureTLS(),
		httpclient.WithHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"),
		httpclient.WithHeader("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"),
	)

	return &Service{
		config: config,
		paths:  common.NewPaths(config.Output),
		logger: logger,
		client: client,
	}
}

// Collect runs the full ETF stage for one run date. A failed finder page is
// fatal; a failed fund detail degrades to an empty holdings list.
func (s *Service) Collect(ctx context.Context, date common.RunDate) error {
	finderURL := strings.TrimSuffix(s.config.ETF.BaseURL, "/") + s.config.ETF.FinderPath

	s.logger.Info().Str("url", finderURL).Msg("Fetching ETF finder page")
	page, err := s.client.FetchBytes(ctx, finderURL)
	if err != nil {
		return fmt.Errorf("ETF finder page: %w", err)
	}

	listings, err := parseFinder(s.config.ETF.BaseURL, page)
	if err != nil {
		return fmt.Errorf("ETF finder parse: %w", err)
	}
	if len(listings) == 0 {
		return fmt.Errorf("ETF finder page contained no funds")
	}
	s.logger.Info().Int("funds", len(listings)).Msg("Parsed ETF listing")

	listingPath := s.paths.ETFListingCSV(date)
	if err := export.WriteCSV(listingPath, listingHeader, listingValues(listings)); err != nil {
		return err
	}

	s.fetchAllHoldings(ctx, listings)

	holdingsPath := s.paths.ETFHoldingsCSV(date)
	if err := export.WriteCSV(holdingsPath, holdingsHeader, holdingsValues(listings)); err != nil {
		return err
	}

	flat := flattenListings(listings, s.logger)
	finalPath := s.paths.ETFFlattenedCSV(date)
	if err := export.WriteCSV(finalPath, flatHeader, flatValues(flat)); err != nil {
		return err
	}
	s.logger.Info().Str("path", finalPath).Int("rows", len(flat)).Msg("ETF flattened CSV written")

	if !s.config.Output.KeepTemp {
		for _, path := range []string{listingPath, holdingsPath} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.logger.Warn().Str("path", path).Err(err).Msg("Failed to remove intermediate CSV")
			}
		}
	}
	return nil
}

// fetchAllHoldings fills each listing's HoldingsJSON via the bounded pool.
// Listings are keyed by index; fund names are not guaranteed unique.
func (s *Service) fetchAllHoldings(ctx context.Context, listings []models.ETFListing) {
	keys := make([]int, len(listings))
	for i := range keys {
		keys[i] = i
	}

	s.logger.Info().
		Int("funds", len(listings)).
		Int("workers", s.config.Enrich.HoldingsWorkers).
		Msg("Fetching fund constituent tables")

	results := pipeline.Enrich(ctx, keys, func(ctx context.Context, i int) (string, error) {
		return s.fetchHoldings(ctx, listings[i].DetailURL)
	}, pipeline.Options{
		Concurrency: s.config.Enrich.HoldingsWorkers,
		MinDelay:    s.config.Enrich.MinDelay,
		MaxDelay:    s.config.Enrich.MaxDelay,
		Logger:      s.logger,
		OnProgress: func(done, total int) {
			if done%25 == 0 || done == total {
				s.logger.Info().Int("done", done).Int("total", total).Msg("Holdings progress")
			}
		},
	})

	for i := range listings {
		cell := results[i]
		if cell == "" {
			cell = "[]"
		}
		listings[i].HoldingsJSON = cell
	}
}

// fetchHoldings returns one fund's constituents serialized as a JSON array.
func (s *Service) fetchHoldings(ctx context.Context, detailURL string) (string, error) {
	if detailURL == "" {
		return "[]", nil
	}

	page, err := s.client.FetchBytes(ctx, holdingsPageURL(detailURL))
	if err != nil {
		return "", err
	}
	holdings, err := parseHoldings(page)
	if err != nil {
		return "", err
	}
	if holdings == nil {
		holdings = []models.RawHolding{}
	}
	cell, err := json.Marshal(holdings)
	if err != nil {
		return "", err
	}
	return string(cell), nil
}

// flattenListings expands every fund's holdings cell into one row per
// constituent. Funds with an unparseable or empty cell contribute no rows.
func flattenListings(listings []models.ETFListing, logger arbor.ILogger) []models.Holding {
	var flat []models.Holding
	for i := range listings {
		l := &listings[i]

		var raw []models.RawHolding
		if err := json.Unmarshal([]byte(l.HoldingsJSON), &raw); err != nil {
			logger.Warn().Str("fund", l.Name).Err(err).Msg("Unparseable holdings cell, skipping fund")
			continue
		}
		for _, h := range raw {
			flat = append(flat, models.Holding{
				FundName:  l.Name,
				Price:     l.Price,
				Change:    l.Change,
				DetailURL: l.DetailURL,
				Rank:      h.Rank,
				ItemName:  h.ItemName,
				ItemCode:  h.ItemCode,
				BasePrice: h.BasePrice,
				Ratio:     h.Ratio,
				Value:     h.Value,
			})
		}
	}
	return flat
}

func listingValues(listings []models.ETFListing) [][]string {
	values := make([][]string, 0, len(listings))
	for i := range listings {
		l := &listings[i]
		values = append(values, []string{l.Name, l.Price, l.Change, l.DetailURL})
	}
	return values
}

func holdingsValues(listings []models.ETFListing) [][]string {
	values := make([][]string, 0, len(listings))
	for i := range listings {
		l := &listings[i]
		values = append(values, []string{l.Name, l.Price, l.Change, l.DetailURL, l.HoldingsJSON})
	}
	return values
}

func flatValues(flat []models.Holding) [][]string {
	values := make([][]string, 0, len(flat))
	for i := range flat {
		h := &flat[i]
		values = append(values, []string{
			h.FundName, h.Price, h.Change, h.DetailURL,
			h.Rank, h.ItemName, h.ItemCode, h.BasePrice, h.Ratio, h.Value,
		})
	}
	return values
}
