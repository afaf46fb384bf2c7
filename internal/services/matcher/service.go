package matcher

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bigrise/internal/common"
	"github.com/ternarybob/bigrise/internal/export"
	"github.com/ternarybob/bigrise/internal/models"
)

var reportHeader = []string{
	"name", "price", "change", "detail_url", "number",
	"item_name", "item_code", "base_price", "ratio", "value",
	"industry_info", "industry_frequency", "industry_source",
	"industry_update_date", "industry_chart_path",
}

var recentHeader = append(append([]string{}, reportHeader...), "parsed_date")

// Service joins the day's ETF holdings against the industry company lists
// and writes the full report plus the recent-update subset.
type Service struct {
	config *common.Config
	paths  *common.Paths
	logger arbor.ILogger

	// now is replaceable for the recency window tests.
	now func() time.Time
}

// NewService creates the matcher.
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		paths:  common.NewPaths(config.Output),
		logger: logger,
		now:    time.Now,
	}
}

// Run matches holdings to industry rows for one run date. Both collector
// outputs must exist; a missing input fails the run.
func (s *Service) Run(date common.RunDate) error {
	holdingsPath := s.paths.ETFFlattenedCSV(date)
	industryPath := s.paths.IndustryEnrichedCSV(date)
	for _, path := range []string{holdingsPath, industryPath} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("matcher input missing: %s: %w", path, err)
		}
	}

	holdings, err := s.loadHoldings(holdingsPath)
	if err != nil {
		return err
	}
	industry, err := s.loadIndustryRows(industryPath)
	if err != nil {
		return err
	}
	s.joinChartIndex(industry)

	s.logger.Info().
		Int("holdings", len(holdings)).
		Int("industry_rows", len(industry)).
		Msg("Matching holdings against industry company lists")

	matched := Match(holdings, industry)

	reportPath := s.paths.MatchReportCSV(date)
	if err := export.WriteCSV(reportPath, reportHeader, reportValues(matched)); err != nil {
		return err
	}
	matchCount := 0
	for i := range matched {
		if matched[i].Matched() {
			matchCount++
		}
	}
	s.logger.Info().
		Str("path", reportPath).
		Int("rows", len(matched)).
		Int("matched", matchCount).
		Msg("Match report written")

	recent := RecentSince(matched, s.now(), s.config.Matcher.RecentWindowDays)
	if len(recent) == 0 {
		s.logger.Info().
			Int("window_days", s.config.Matcher.RecentWindowDays).
			Msg("No holdings with a recent industry update")
		return nil
	}

	recentPath := s.paths.MatchRecentCSV(date)
	if err := export.WriteCSV(recentPath, recentHeader, recentValues(recent)); err != nil {
		return err
	}
	s.logger.Info().Str("path", recentPath).Int("rows", len(recent)).Msg("Recent subset written")

	s.copyRecentCharts(recent)
	return nil
}

// loadHoldings reads the flattened ETF output.
func (s *Service) loadHoldings(path string) ([]models.Holding, error) {
	header, rows, err := export.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	idx := export.ColumnIndex(header)

	holdings := make([]models.Holding, 0, len(rows))
	for _, row := range rows {
		holdings = append(holdings, models.Holding{
			FundName:  export.Field(row, idx, "name"),
			Price:     export.Field(row, idx, "price"),
			Change:    export.Field(row, idx, "change"),
			DetailURL: export.Field(row, idx, "detail_url"),
			Rank:      export.Field(row, idx, "number"),
			ItemName:  export.Field(row, idx, "item_name"),
			ItemCode:  export.Field(row, idx, "item_code"),
			BasePrice: export.Field(row, idx, "base_price"),
			Ratio:     export.Field(row, idx, "ratio"),
			Value:     export.Field(row, idx, "value"),
		})
	}
	return holdings, nil
}

// loadIndustryRows reads the enriched industry output. The raw and header
// update dates live in separate columns and keep their precedence order.
func (s *Service) loadIndustryRows(path string) ([]IndustryRow, error) {
	header, rows, err := export.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	idx := export.ColumnIndex(header)

	industry := make([]IndustryRow, 0, len(rows))
	for _, row := range rows {
		groupID, _ := strconv.Atoi(export.Field(row, idx, "group_id"))
		industry = append(industry, IndustryRow{
			MainCode:         export.Field(row, idx, "main_code"),
			GroupID:          groupID,
			SubCode:          export.Field(row, idx, "sub_code"),
			DataCode:         export.Field(row, idx, "data_code"),
			SubName:          export.Field(row, idx, "sub_name"),
			DataName:         export.Field(row, idx, "data_name"),
			Frequency:        export.Field(row, idx, "frequency"),
			Source:           export.Field(row, idx, "source"),
			UpdateDateRaw:    export.Field(row, idx, "update_date"),
			UpdateDateHeader: export.Field(row, idx, "updateDate"),
			Companies:        export.Field(row, idx, "companies"),
		})
	}
	return industry, nil
}

// joinChartIndex fills each industry row's chart path and chart date from
// the chart index, when one was produced. A missing index leaves the chart
// columns empty.
func (s *Service) joinChartIndex(industry []IndustryRow) {
	header, rows, err := export.ReadCSV(s.paths.ChartIndexCSV())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Err(err).Msg("Chart index unreadable, skipping chart join")
		}
		return
	}
	idx := export.ColumnIndex(header)

	type chartCols struct {
		FilePath   string
		UpdateDate string
	}
	byKey := make(map[models.ChartKey]chartCols, len(rows))
	for _, row := range rows {
		groupID, _ := strconv.Atoi(export.Field(row, idx, "group_id"))
		key := models.ChartKey{
			MainCode: export.Field(row, idx, "main_code"),
			GroupID:  groupID,
			SubCode:  export.Field(row, idx, "sub_code"),
			DataCode: export.Field(row, idx, "data_code"),
		}
		byKey[key] = chartCols{
			FilePath:   export.Field(row, idx, "file_path"),
			UpdateDate: export.Field(row, idx, "update_date"),
		}
	}

	for i := range industry {
		r := &industry[i]
		key := models.ChartKey{MainCode: r.MainCode, GroupID: r.GroupID, SubCode: r.SubCode, DataCode: r.DataCode}
		if cols, ok := byKey[key]; ok {
			r.ChartPath = cols.FilePath
			r.ChartUpdateDate = cols.UpdateDate
		}
	}
}

// copyRecentCharts copies the chart JSON of every recent row into the
// recent chart directory. Missing source files are logged and skipped.
func (s *Service) copyRecentCharts(recent []models.MatchedHolding) {
	if err := common.EnsureDir(s.paths.RecentChartDir()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to create recent chart directory")
		return
	}

	copied := 0
	for i := range recent {
		src := strings.TrimSpace(recent[i].IndustryChartPath)
		if src == "" {
			continue
		}
		src = strings.TrimPrefix(src, "./")

		dst := filepath.Join(s.paths.RecentChartDir(), filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			s.logger.Warn().Str("path", src).Err(err).Msg("Chart file copy failed")
			continue
		}
		copied++
	}
	s.logger.Info().Int("copied", copied).Msg("Recent chart files copied")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func reportValues(matched []models.MatchedHolding) [][]string {
	values := make([][]string, 0, len(matched))
	for i := range matched {
		values = append(values, reportRow(&matched[i]))
	}
	return values
}

func recentValues(recent []models.MatchedHolding) [][]string {
	values := make([][]string, 0, len(recent))
	for i := range recent {
		row := reportRow(&recent[i])
		parsed := ParseUpdateDate(recent[i].IndustryUpdateDate)
		values = append(values, append(row, parsed.Format("2006-01-02 15:04:05")))
	}
	return values
}

func reportRow(m *models.MatchedHolding) []string {
	return []string{
		m.FundName, m.Price, m.Change, m.DetailURL, m.Rank,
		m.ItemName, m.ItemCode, m.BasePrice, m.Ratio, m.Value,
		m.IndustryInfo, m.IndustryFrequency, m.IndustrySource,
		m.IndustryUpdateDate, m.IndustryChartPath,
	}
}
