package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/bigrise/internal/models"
)

func holding(fund, item string) models.Holding {
	return models.Holding{FundName: fund, ItemName: item}
}

func industryRow(sub, data, companies string) IndustryRow {
	return IndustryRow{SubName: sub, DataName: data, Companies: companies}
}

func TestMatch_SubstringContainment(t *testing.T) {
	holdings := []models.Holding{
		holding("FundA", "삼성전자"),
		holding("FundA", "카카오"),
	}
	industry := []IndustryRow{
		industryRow("반도체", "출하", `[{"code":"005930","name":"삼성전자"}]`),
	}

	matched := Match(holdings, industry)
	require.Len(t, matched, 2)
	assert.Equal(t, "반도체-출하", matched[0].IndustryInfo)
	assert.True(t, matched[0].Matched())
	assert.False(t, matched[1].Matched())
	assert.Empty(t, matched[1].IndustryInfo)
}

func TestMatch_OneRowPerHoldingInInputOrder(t *testing.T) {
	holdings := []models.Holding{
		holding("FundA", "삼성전자"),
		holding("FundB", "삼성전자"),
		holding("FundB", "포스코"),
	}
	industry := []IndustryRow{
		industryRow("반도체", "출하", `[{"name":"삼성전자"}]`),
	}

	matched := Match(holdings, industry)
	require.Len(t, matched, 3)
	assert.Equal(t, "FundA", matched[0].FundName)
	assert.Equal(t, "FundB", matched[1].FundName)
	// Every holding of a matched item carries the same enrichment.
	assert.Equal(t, matched[0].IndustryInfo, matched[1].IndustryInfo)
}

func TestMatch_LastIndustryRowWins(t *testing.T) {
	holdings := []models.Holding{holding("FundA", "삼성전자")}
	industry := []IndustryRow{
		industryRow("반도체", "출하", `[{"name":"삼성전자"}]`),
		industryRow("디스플레이", "가동률", `[{"name":"삼성전자"}]`),
	}

	matched := Match(holdings, industry)
	require.Len(t, matched, 1)
	assert.Equal(t, "디스플레이-가동률", matched[0].IndustryInfo)
}

func TestMatch_EmptyCompaniesCellSkipped(t *testing.T) {
	holdings := []models.Holding{holding("FundA", "삼성전자")}
	industry := []IndustryRow{
		industryRow("반도체", "출하", ""),
		industryRow("철강", "가격", "  "),
	}

	matched := Match(holdings, industry)
	assert.False(t, matched[0].Matched())
}

func TestMatch_SubstringFalsePositive(t *testing.T) {
	// Containment is textual: an item name that is a substring of another
	// company's name still matches. Known limitation of the cell format.
	holdings := []models.Holding{holding("FundA", "삼성")}
	industry := []IndustryRow{
		industryRow("반도체", "출하", `[{"name":"삼성전자"}]`),
	}

	matched := Match(holdings, industry)
	assert.True(t, matched[0].Matched())
}

func TestMatch_Deterministic(t *testing.T) {
	holdings := []models.Holding{
		holding("FundA", "삼성전자"),
		holding("FundB", "포스코"),
		holding("FundC", "카카오"),
	}
	industry := []IndustryRow{
		industryRow("반도체", "출하", `[{"name":"삼성전자"},{"name":"카카오"}]`),
		industryRow("철강", "가격", `[{"name":"포스코"}]`),
	}

	first := Match(holdings, industry)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Match(holdings, industry))
	}
}

func TestIndustryRow_UpdateDatePrecedence(t *testing.T) {
	tests := []struct {
		name string
		row  IndustryRow
		want string
	}{
		{"raw wins", IndustryRow{UpdateDateRaw: "20260820", UpdateDateHeader: "20260810", ChartUpdateDate: "20260801"}, "20260820"},
		{"header when raw empty", IndustryRow{UpdateDateHeader: "20260810", ChartUpdateDate: "20260801"}, "20260810"},
		{"chart as last resort", IndustryRow{ChartUpdateDate: "20260801"}, "20260801"},
		{"blank raw skipped", IndustryRow{UpdateDateRaw: "  ", UpdateDateHeader: "2026-08-10"}, "2026-08-10"},
		{"all empty", IndustryRow{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.row.UpdateDate())
		})
	}
}

func TestParseUpdateDate(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want time.Time
	}{
		{"20260820", true, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
		{"2026-08-20", true, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
		{" 20260820 ", true, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
		{"", false, time.Time{}},
		{"2026/08/20", false, time.Time{}},
		{"updated recently", false, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseUpdateDate(tt.in)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			} else {
				assert.True(t, got.IsZero())
			}
		})
	}
}

func TestRecentSince_WindowBoundary(t *testing.T) {
	now := time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)

	rowFor := func(date string) models.MatchedHolding {
		return models.MatchedHolding{
			Holding:            holding("FundA", "종목"),
			IndustryInfo:       "x-y",
			IndustryUpdateDate: date,
		}
	}

	tests := []struct {
		name string
		date string
		kept bool
	}{
		{"today", "20260825", true},
		{"exactly seven days old", "20260818", true},
		{"eight days old", "20260817", false},
		{"dashed format inside window", "2026-08-20", true},
		{"unparseable", "soon", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recent := RecentSince([]models.MatchedHolding{rowFor(tt.date)}, now, 7)
			if tt.kept {
				assert.Len(t, recent, 1)
			} else {
				assert.Empty(t, recent)
			}
		})
	}
}

func TestRecentSince_PreservesOrder(t *testing.T) {
	now := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	rows := []models.MatchedHolding{
		{Holding: holding("A", "x"), IndustryUpdateDate: "20260824"},
		{Holding: holding("B", "y"), IndustryUpdateDate: "20260801"},
		{Holding: holding("C", "z"), IndustryUpdateDate: "20260823"},
	}

	recent := RecentSince(rows, now, 7)
	require.Len(t, recent, 2)
	assert.Equal(t, "A", recent[0].FundName)
	assert.Equal(t, "C", recent[1].FundName)
}
