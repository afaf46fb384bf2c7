package matcher

import (
	"strings"
	"time"

	"github.com/ternarybob/bigrise/internal/models"
)

// IndustryRow is one enriched industry data point as read back from the
// industry collector's output, with the chart index columns joined on.
type IndustryRow struct {
	MainCode string
	GroupID  int
	SubCode  string
	DataCode string
	SubName  string
	DataName string

	Frequency string
	Source    string

	// The three update date candidates in precedence order.
	UpdateDateRaw    string
	UpdateDateHeader string
	ChartUpdateDate  string

	Companies string
	ChartPath string
}

// UpdateDate returns the first non-empty date candidate: the category tree's
// own date, then the header metadata date, then the chart index date.
func (r *IndustryRow) UpdateDate() string {
	for _, v := range []string{r.UpdateDateRaw, r.UpdateDateHeader, r.ChartUpdateDate} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// enrichment is the set of industry columns attached to a matched holding.
type enrichment struct {
	Info       string
	Frequency  string
	Source     string
	UpdateDate string
	ChartPath  string
}

// Match joins ETF holdings to industry rows by substring containment of the
// holding's item name in the serialized companies cell. When several industry
// rows claim the same item name, the later row in file order wins. The result
// has exactly one row per input holding, in input order; unmatched holdings
// carry empty industry columns.
func Match(holdings []models.Holding, industry []IndustryRow) []models.MatchedHolding {
	itemNames := distinctItemNames(holdings)

	byItem := make(map[string]enrichment)
	for i := range industry {
		row := &industry[i]
		if strings.TrimSpace(row.Companies) == "" {
			continue
		}

		cols := enrichment{
			Info:       row.SubName + "-" + row.DataName,
			Frequency:  row.Frequency,
			Source:     row.Source,
			UpdateDate: row.UpdateDate(),
			ChartPath:  row.ChartPath,
		}
		for _, name := range itemNames {
			if strings.Contains(row.Companies, name) {
				byItem[name] = cols
			}
		}
	}

	matched := make([]models.MatchedHolding, 0, len(holdings))
	for _, h := range holdings {
		cols := byItem[h.ItemName]
		matched = append(matched, models.MatchedHolding{
			Holding:            h,
			IndustryInfo:       cols.Info,
			IndustryFrequency:  cols.Frequency,
			IndustrySource:     cols.Source,
			IndustryUpdateDate: cols.UpdateDate,
			IndustryChartPath:  cols.ChartPath,
		})
	}
	return matched
}

func distinctItemNames(holdings []models.Holding) []string {
	seen := make(map[string]bool, len(holdings))
	var names []string
	for i := range holdings {
		name := holdings[i].ItemName
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// ParseUpdateDate accepts the two date formats the upstream systems emit.
// Returns the zero time when the value parses as neither.
func ParseUpdateDate(value string) time.Time {
	s := strings.TrimSpace(value)
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// RecentSince returns the subset of rows whose industry update date falls on
// or after the cutoff: exactly windowDays before now's calendar date. A row
// updated windowDays ago is included; one day older is not.
func RecentSince(rows []models.MatchedHolding, now time.Time, windowDays int) []models.MatchedHolding {
	// Parsed dates carry no zone; compare calendar days in UTC.
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := day.AddDate(0, 0, -windowDays)

	var recent []models.MatchedHolding
	for _, row := range rows {
		parsed := ParseUpdateDate(row.IndustryUpdateDate)
		if parsed.IsZero() || parsed.Before(cutoff) {
			continue
		}
		recent = append(recent, row)
	}
	return recent
}
