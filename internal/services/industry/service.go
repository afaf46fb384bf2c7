package industry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bigrise/internal/auth"
	"github.com/ternarybob/bigrise/internal/common"
	"github.com/ternarybob/bigrise/internal/export"
	"github.com/ternarybob/bigrise/internal/httpclient"
	"github.com/ternarybob/bigrise/internal/models"
	"github.com/ternarybob/bigrise/internal/pipeline"
)

const categoriesAPIPath = "/api/industry/categories"

var categoriesHeader = []string{
	"main_code", "main_name", "group_id", "group_name",
	"sub_code", "sub_name", "update_date", "data_type",
	"data_code", "data_name", "last_update",
}

var enrichedHeader = append(append([]string{}, categoriesHeader...),
	"frequency", "unit", "source", "footnote", "yoyFlag", "updateDate", "companies")

// Service collects the industry category tree from the authenticated portal,
// flattens it, and enriches every sub-category with header metadata and its
// company list.
type Service struct {
	config *common.Config
	paths  *common.Paths
	logger arbor.ILogger
}

// NewService creates the industry collector.
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		paths:  common.NewPaths(config.Output),
		logger: logger,
	}
}

// Collect runs the full industry stage for one run date. Login failure and
// an empty category payload are fatal; per-sub-category enrichment failures
// degrade to empty columns.
func (s *Service) Collect(ctx context.Context, date common.RunDate) error {
	login := auth.NewService(s.config.Portal, s.logger)
	cookies, err := login.Login(ctx)
	if err != nil {
		return err
	}
	client := s.newSessionClient(cookies)

	s.logger.Info().Msg("Fetching industry category tree")
	var resp models.CategoryResponse
	if err := client.FetchJSON(ctx, s.apiURL(categoriesAPIPath), &resp); err != nil {
		return fmt.Errorf("category API: %w", err)
	}

	rows := pipeline.FlattenCategories(&resp)
	if len(rows) == 0 {
		return fmt.Errorf("category API returned no data points")
	}
	s.logger.Info().Int("rows", len(rows)).Msg("Flattened category tree")

	tempPath := s.paths.IndustryCategoriesCSV(date)
	if err := export.WriteCSV(tempPath, categoriesHeader, baseValues(rows)); err != nil {
		return err
	}

	keys := pipeline.SubCategoryKeys(rows)
	s.logger.Info().
		Int("sub_categories", len(keys)).
		Int("workers", s.config.Enrich.IndustryWorkers).
		Msg("Enriching sub-categories with header metadata and companies")

	enrichment := pipeline.Enrich(ctx, keys, s.lookupSub(client), pipeline.Options{
		Concurrency: s.config.Enrich.IndustryWorkers,
		MinDelay:    s.config.Enrich.MinDelay,
		MaxDelay:    s.config.Enrich.MaxDelay,
		Logger:      s.logger,
		OnProgress: func(done, total int) {
			if done%25 == 0 || done == total {
				s.logger.Info().Int("done", done).Int("total", total).Msg("Sub-category enrichment progress")
			}
		},
	})

	applyEnrichment(rows, enrichment)

	finalPath := s.paths.IndustryEnrichedCSV(date)
	if err := export.WriteCSV(finalPath, enrichedHeader, enrichedValues(rows)); err != nil {
		return err
	}
	s.logger.Info().Str("path", finalPath).Int("rows", len(rows)).Msg("Industry CSV written")

	if s.config.Charts.Enabled {
		if err := s.downloadCharts(ctx, client, rows); err != nil {
			return err
		}
	}

	if !s.config.Output.KeepTemp {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Str("path", tempPath).Err(err).Msg("Failed to remove intermediate CSV")
		}
	}
	return nil
}

// newSessionClient builds the retrying HTTP client that reuses the browser
// session. The portal requires the XSRF cookie value echoed as a header.
func (s *Service) newSessionClient(cookies []*http.Cookie) *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithTimeout(s.config.HTTP.RequestTimeout),
		httpclient.WithRetryPolicy(s.retryPolicy()),
		httpclient.WithLogger(s.logger),
		httpclient.WithRateLimit(s.config.HTTP.RateLimit),
		httpclient.WithCookies(s.config.Portal.BaseURL, cookies),
		httpclient.WithHeader("Accept", "application/json, text/plain, */*"),
		httpclient.WithHeader("Referer", s.config.Portal.BaseURL),
		httpclient.WithHeader("Origin", s.config.Portal.BaseURL),
		httpclient.WithHeader("x-xsrf-token", auth.XSRFToken(cookies)),
	}
	if s.config.Portal.InsecureSkipVerify {
		opts = append(opts, httpclient.WithInsecureTLS())
	}
	return httpclient.New(opts...)
}

func (s *Service) retryPolicy() *httpclient.RetryPolicy {
	policy := httpclient.NewRetryPolicy()
	policy.MaxAttempts = s.config.HTTP.MaxRetries
	return policy
}

func (s *Service) apiURL(path string) string {
	return strings.TrimSuffix(s.config.Portal.BaseURL, "/") + path
}

// baseValues serializes the pre-enrichment columns.
func baseValues(rows []models.FlatCategoryRow) [][]string {
	values := make([][]string, 0, len(rows))
	for i := range rows {
		values = append(values, rowBase(&rows[i]))
	}
	return values
}

// enrichedValues serializes the final columns including enrichment.
func enrichedValues(rows []models.FlatCategoryRow) [][]string {
	values := make([][]string, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		values = append(values, append(rowBase(r),
			r.Frequency, r.Unit, r.Source, r.Footnote,
			r.YoYFlag, r.HeaderUpdateDate, r.Companies))
	}
	return values
}

func rowBase(r *models.FlatCategoryRow) []string {
	return []string{
		r.MainCode, r.MainName, strconv.Itoa(r.GroupID), r.GroupName,
		r.SubCode, r.SubName, r.UpdateDate, r.DataType,
		r.DataCode, r.DataName, r.LastUpdate,
	}
}

// applyEnrichment copies each sub-category's lookup result onto every row of
// that sub-category. Rows whose lookup failed keep empty metadata and an
// empty company list serialized as "[]".
func applyEnrichment(rows []models.FlatCategoryRow, enrichment map[models.SubKey]models.SubEnrichment) {
	for i := range rows {
		r := &rows[i]
		e := enrichment[r.Key()]

		r.Frequency = e.Meta.Frequency
		r.Unit = e.Meta.Unit
		r.Source = e.Meta.Source
		r.Footnote = e.Meta.Footnote
		r.YoYFlag = e.Meta.YoYFlag
		r.HeaderUpdateDate = e.Meta.UpdateDate

		companies := e.Companies
		if companies == nil {
			companies = []models.Company{}
		}
		cell, err := json.Marshal(companies)
		if err != nil {
			cell = []byte("[]")
		}
		r.Companies = string(cell)
	}
}
