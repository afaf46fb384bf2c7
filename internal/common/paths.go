package common

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunDate is the date stamp attached to every output file of a pipeline run.
type RunDate string

// Today returns the run date for the current local day.
func Today() RunDate {
	return RunDate(time.Now().Format("20060102"))
}

// PreviousDay returns the run date for the previous local day. The scheduler
// collects news for the day that has fully elapsed.
func PreviousDay() RunDate {
	return RunDate(time.Now().AddDate(0, 0, -1).Format("20060102"))
}

// ParseRunDate validates a user-supplied run date. Output file names and the
// recency window both depend on the stamp being a real YYYYMMDD date.
func ParseRunDate(s string) (RunDate, error) {
	if _, err := time.Parse("20060102", s); err != nil {
		return "", fmt.Errorf("invalid run date %q, expected YYYYMMDD", s)
	}
	return RunDate(s), nil
}

func (d RunDate) String() string { return string(d) }

// Paths resolves every dated file the pipeline reads or writes. Each stage
// exclusively owns its output file; downstream stages only read.
type Paths struct {
	Root     string
	HTMLDump string
}

// NewPaths builds the path resolver from output configuration.
func NewPaths(cfg OutputConfig) *Paths {
	return &Paths{Root: cfg.Root, HTMLDump: cfg.HTMLDump}
}

// Industry collector outputs.

func (p *Paths) IndustryDir() string {
	return filepath.Join(p.Root, "bigfinance")
}

func (p *Paths) IndustryCategoriesCSV(date RunDate) string {
	return filepath.Join(p.IndustryDir(), fmt.Sprintf("industry_categories_%s.csv", date))
}

func (p *Paths) IndustryEnrichedCSV(date RunDate) string {
	return filepath.Join(p.IndustryDir(), fmt.Sprintf("industry_categories_%s_with_meta_companies.csv", date))
}

func (p *Paths) ChartDir() string {
	return filepath.Join(p.IndustryDir(), "chart")
}

func (p *Paths) ChartIndexCSV() string {
	return filepath.Join(p.ChartDir(), "chart_index.csv")
}

func (p *Paths) ChartIndexManifest() string {
	return filepath.Join(p.ChartDir(), "chart_index.json")
}

// ETF collector outputs.

func (p *Paths) ETFDir() string {
	return filepath.Join(p.Root, "riseETF")
}

func (p *Paths) ETFListingCSV(date RunDate) string {
	return filepath.Join(p.ETFDir(), fmt.Sprintf("rise_finder_%s.csv", date))
}

func (p *Paths) ETFHoldingsCSV(date RunDate) string {
	return filepath.Join(p.ETFDir(), fmt.Sprintf("rise_finder_%s_with_holdings.csv", date))
}

func (p *Paths) ETFFlattenedCSV(date RunDate) string {
	return filepath.Join(p.ETFDir(), fmt.Sprintf("rise_finder_%s_with_holdings_flattened.csv", date))
}

// News collector outputs.

func (p *Paths) NewsDir() string {
	return filepath.Join(p.Root, "naver")
}

func (p *Paths) NewsCSV(date RunDate) string {
	return filepath.Join(p.NewsDir(), fmt.Sprintf("naver_news_%s.csv", date))
}

func (p *Paths) NewsContentsCSV(date RunDate) string {
	return filepath.Join(p.NewsDir(), fmt.Sprintf("naver_news_%s_with_contents.csv", date))
}

func (p *Paths) NewsDumpFile(date RunDate, section, page int) string {
	return filepath.Join(p.HTMLDump, fmt.Sprintf("naver_news_list_%s_s%d_p%d.html", date, section, page))
}

// Matcher outputs.

func (p *Paths) MatchDir() string {
	return filepath.Join(p.Root, "bigRise")
}

func (p *Paths) MatchReportCSV(date RunDate) string {
	return filepath.Join(p.MatchDir(), fmt.Sprintf("bigrise_%s.csv", date))
}

func (p *Paths) MatchRecentCSV(date RunDate) string {
	return filepath.Join(p.MatchDir(), fmt.Sprintf("bigrise_recent_%s.csv", date))
}

func (p *Paths) RecentChartDir() string {
	return filepath.Join(p.MatchDir(), "recent")
}

// EnsureDir creates a directory and its parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
