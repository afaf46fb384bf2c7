package models

// MatchedHolding is one row of the matcher's full report: an ETF holding
// plus the industry enrichment columns. Holdings with no industry match
// carry empty enrichment values.
type MatchedHolding struct {
	Holding

	IndustryInfo       string // "{sub_name}-{data_name}"
	IndustryFrequency  string
	IndustrySource     string
	IndustryUpdateDate string
	IndustryChartPath  string
}

// Matched reports whether any industry row matched this holding.
func (m *MatchedHolding) Matched() bool {
	return m.IndustryInfo != ""
}
