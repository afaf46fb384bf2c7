package news

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bigrise/internal/common"
	"github.com/ternarybob/bigrise/internal/export"
	"github.com/ternarybob/bigrise/internal/httpclient"
	"github.com/ternarybob/bigrise/internal/models"
	"github.com/ternarybob/bigrise/internal/pipeline"
)

var newsHeader = []string{
	"section_name", "section_id3", "office_id", "article_id", "url",
	"title", "press", "wdate", "source_file",
}

var contentsHeader = append(append([]string{}, newsHeader...), "contents")

// Service collects the finance news section listings for one date, then
// fetches every article body.
type Service struct {
	config *common.Config
	paths  *common.Paths
	logger arbor.ILogger
	client *httpclient.Client
}

// NewService creates the news collector.
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	policy := httpclient.NewRetryPolicy()
	policy.MaxAttempts = config.HTTP.MaxRetries

	client := httpclient.New(
		httpclient.WithTimeout(config.HTTP.RequestTimeout),
		httpclient.WithRetryPolicy(policy),
		httpclient.WithLogger(logger),
		httpclient.WithRateLimit(config.HTTP.RateLimit),
		httpclient.WithHeader("Referer", config.News.BaseURL+"/"),
		httpclient.WithHeader("Accept-Language", "ko,en;q=0.9"),
	)

	return &Service{
		config: config,
		paths:  common.NewPaths(config.Output),
		logger: logger,
		client: client,
	}
}

// Collect runs the full news stage for one target date: dump every section
// list page, aggregate the dump into the dated CSV, then enrich each row
// with the article body.
func (s *Service) Collect(ctx context.Context, date common.RunDate) error {
	if err := s.dumpSectionPages(ctx, date); err != nil {
		return err
	}

	articles, err := s.aggregateDump(date)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		s.logger.Warn().Str("date", date.String()).Msg("No articles found for date")
	}

	tempPath := s.paths.NewsCSV(date)
	if err := export.WriteCSV(tempPath, newsHeader, articleValues(articles, false)); err != nil {
		return err
	}
	s.logger.Info().Str("path", tempPath).Int("articles", len(articles)).Msg("News list CSV written")

	s.fetchAllContents(ctx, articles)

	finalPath := s.paths.NewsContentsCSV(date)
	if err := export.WriteCSV(finalPath, contentsHeader, articleValues(articles, true)); err != nil {
		return err
	}
	s.logger.Info().Str("path", finalPath).Msg("News contents CSV written")

	s.cleanupDump()

	if !s.config.Output.KeepTemp {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Str("path", tempPath).Err(err).Msg("Failed to remove intermediate CSV")
		}
	}
	return nil
}

// dumpSectionPages saves every list page of every configured section. Page 1
// of each section is fetched serially to learn that section's page count;
// the remaining pages go through the bounded pool.
func (s *Service) dumpSectionPages(ctx context.Context, date common.RunDate) error {
	if err := common.EnsureDir(s.paths.HTMLDump); err != nil {
		return err
	}

	type task struct {
		Section int
		Page    int
	}
	var tasks []task

	for _, section := range s.config.News.Sections {
		page, err := s.fetchListPage(ctx, date, section, 1)
		if err != nil {
			return fmt.Errorf("section %d page 1: %w", section, err)
		}
		if err := s.saveDump(date, section, 1, page); err != nil {
			return err
		}

		maxPage := parseMaxPage(page)
		s.logger.Info().
			Int("section", section).
			Str("name", SectionName(section)).
			Int("pages", maxPage).
			Msg("Section page count discovered")

		for p := 2; p <= maxPage; p++ {
			tasks = append(tasks, task{Section: section, Page: p})
		}
	}

	pipeline.Enrich(ctx, tasks, func(ctx context.Context, t task) (struct{}, error) {
		page, err := s.fetchListPage(ctx, date, t.Section, t.Page)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.saveDump(date, t.Section, t.Page, page)
	}, pipeline.Options{
		Concurrency: s.config.Enrich.PageWorkers,
		MinDelay:    s.config.Enrich.MinDelay,
		MaxDelay:    s.config.Enrich.MaxDelay,
		Logger:      s.logger,
	})
	return nil
}

// fetchListPage downloads one section list page and decodes it from cp949.
func (s *Service) fetchListPage(ctx context.Context, date common.RunDate, section, page int) (string, error) {
	body, err := s.client.FetchBytes(ctx, s.listURL(date, section, page))
	if err != nil {
		return "", err
	}
	return decodeEUCKR(body), nil
}

func (s *Service) listURL(date common.RunDate, section, page int) string {
	q := url.Values{}
	q.Set("mode", "LSS3D")
	q.Set("section_id", "101")
	q.Set("section_id2", "258")
	q.Set("section_id3", strconv.Itoa(section))
	q.Set("date", date.String())
	q.Set("page", strconv.Itoa(page))
	return strings.TrimSuffix(s.config.News.BaseURL, "/") + s.config.News.ListPath + "?" + q.Encode()
}

func (s *Service) saveDump(date common.RunDate, section, page int, content string) error {
	path := s.paths.NewsDumpFile(date, section, page)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to save dump %s: %w", path, err)
	}
	return nil
}

// aggregateDump parses every dump file for the date and deduplicates rows by
// (url, title). First encounter fixes the row's position, the last occurrence
// wins the value.
func (s *Service) aggregateDump(date common.RunDate) ([]*models.Article, error) {
	pattern := filepath.Join(s.paths.HTMLDump, fmt.Sprintf("naver_news_list_%s_s*_p*.html", date))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob dump files: %w", err)
	}
	sort.Strings(files)

	type dedupeKey struct {
		URL   string
		Title string
	}
	byKey := make(map[dedupeKey]*models.Article)
	var order []dedupeKey

	for _, file := range files {
		section, _, ok := parseDumpFileName(filepath.Base(file))
		if !ok {
			continue
		}
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read dump %s: %w", file, err)
		}

		for _, entry := range parseListPage(string(content)) {
			officeID, articleID, normalized := normalizeNewsURL(s.config.News.BaseURL, entry.Href)
			article := &models.Article{
				SectionName: SectionName(section),
				SectionID3:  section,
				OfficeID:    officeID,
				ArticleID:   articleID,
				URL:         normalized,
				Title:       entry.Title,
				Press:       entry.Press,
				WDate:       entry.WDate,
				SourceFile:  filepath.Base(file),
			}

			key := dedupeKey{URL: article.URL, Title: article.Title}
			if _, seen := byKey[key]; !seen {
				order = append(order, key)
			}
			byKey[key] = article
		}
	}

	articles := make([]*models.Article, 0, len(order))
	for _, key := range order {
		articles = append(articles, byKey[key])
	}
	return articles, nil
}

// fetchAllContents fills each article's body through the bounded pool.
// Failures leave the contents column empty.
func (s *Service) fetchAllContents(ctx context.Context, articles []*models.Article) {
	keys := make([]int, len(articles))
	for i := range keys {
		keys[i] = i
	}

	s.logger.Info().
		Int("articles", len(articles)).
		Int("workers", s.config.Enrich.ContentsWorkers).
		Msg("Fetching article bodies")

	results := pipeline.Enrich(ctx, keys, func(ctx context.Context, i int) (string, error) {
		return s.fetchArticleText(ctx, articles[i].URL)
	}, pipeline.Options{
		Concurrency: s.config.Enrich.ContentsWorkers,
		MinDelay:    s.config.Enrich.MinDelay,
		MaxDelay:    s.config.Enrich.MaxDelay,
		Logger:      s.logger,
		OnProgress: func(done, total int) {
			if done%100 == 0 || done == total {
				s.logger.Info().Int("done", done).Int("total", total).Msg("Article body progress")
			}
		},
	})

	for i := range articles {
		articles[i].Contents = results[i]
	}
}

// fetchArticleText returns an article's body text. Client errors from the
// article host mean the piece was removed; they yield empty contents rather
// than an error.
func (s *Service) fetchArticleText(ctx context.Context, articleURL string) (string, error) {
	body, err := s.client.FetchBytes(ctx, articleURL)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return "", nil
		}
		return "", err
	}
	return extractArticleText(body), nil
}

// cleanupDump removes the whole dump directory; it is scratch space owned by
// this stage.
func (s *Service) cleanupDump() {
	if err := os.RemoveAll(s.paths.HTMLDump); err != nil {
		s.logger.Warn().Str("path", s.paths.HTMLDump).Err(err).Msg("Failed to remove dump directory")
	}
}

func articleValues(articles []*models.Article, withContents bool) [][]string {
	values := make([][]string, 0, len(articles))
	for _, a := range articles {
		row := []string{
			a.SectionName, strconv.Itoa(a.SectionID3), a.OfficeID, a.ArticleID,
			a.URL, a.Title, a.Press, a.WDate, a.SourceFile,
		}
		if withContents {
			row = append(row, a.Contents)
		}
		values = append(values, row)
	}
	return values
}
