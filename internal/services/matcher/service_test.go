package matcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bigrise/internal/common"
	"github.com/ternarybob/bigrise/internal/export"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
}

func writeFixtures(t *testing.T, paths *common.Paths, date common.RunDate) {
	t.Helper()

	require.NoError(t, export.WriteCSV(paths.ETFFlattenedCSV(date),
		[]string{"name", "price", "change", "detail_url", "number", "item_name", "item_code", "base_price", "ratio", "value"},
		[][]string{
			{"RISE 반도체", "12,345", "상승 120", "https://riseetf.co.kr/prod/view?id=101", "1", "삼성전자", "005930", "71,200", "24.51", "1,234,567"},
			{"RISE 반도체", "12,345", "상승 120", "https://riseetf.co.kr/prod/view?id=101", "2", "카카오", "035720", "48,000", "3.10", "222,333"},
		}))

	require.NoError(t, export.WriteCSV(paths.IndustryEnrichedCSV(date),
		[]string{"main_code", "main_name", "group_id", "group_name", "sub_code", "sub_name", "update_date", "data_type", "data_code", "data_name", "last_update", "frequency", "unit", "source", "footnote", "yoyFlag", "updateDate", "companies"},
		[][]string{
			{"M1", "제조", "10", "소재", "S1", "반도체", "20260824", "PRICE", "D1", "출하", "", "월간", "", "산업부", "", "", "", `[{"code":"005930","name":"삼성전자"}]`},
		}))

	chartFile := filepath.Join(paths.ChartDir(), "PRICE", "M1_10_S1_D1.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(chartFile), 0755))
	require.NoError(t, os.WriteFile(chartFile, []byte(`{"series":[]}`), 0644))

	require.NoError(t, export.WriteCSV(paths.ChartIndexCSV(),
		[]string{"data_type", "main_code", "group_id", "sub_code", "data_code", "sub_name", "data_name", "file_path", "update_date"},
		[][]string{
			{"PRICE", "M1", "10", "S1", "D1", "반도체", "출하", "./" + filepath.ToSlash(chartFile), "20260824"},
		}))
}

func TestServiceRun_EndToEnd(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := common.NewDefaultConfig()
	cfg.Output.Root = "out"
	date := common.RunDate("20260825")
	paths := common.NewPaths(cfg.Output)
	writeFixtures(t, paths, date)

	svc := NewService(cfg, arbor.NewLogger())
	svc.now = fixedNow
	require.NoError(t, svc.Run(date))

	header, rows, err := export.ReadCSV(paths.MatchReportCSV(date))
	require.NoError(t, err)
	assert.Equal(t, reportHeader, header)
	require.Len(t, rows, 2)

	idx := export.ColumnIndex(header)
	assert.Equal(t, "반도체-출하", export.Field(rows[0], idx, "industry_info"))
	assert.Equal(t, "20260824", export.Field(rows[0], idx, "industry_update_date"))
	assert.Contains(t, export.Field(rows[0], idx, "industry_chart_path"), "M1_10_S1_D1.json")
	assert.Empty(t, export.Field(rows[1], idx, "industry_info"), "unmatched holding keeps empty columns")

	// The matched row's update date is inside the window.
	recentHeaderGot, recentRows, err := export.ReadCSV(paths.MatchRecentCSV(date))
	require.NoError(t, err)
	assert.Equal(t, recentHeader, recentHeaderGot)
	require.Len(t, recentRows, 1)
	assert.Equal(t, "삼성전자", export.Field(recentRows[0], export.ColumnIndex(recentHeaderGot), "item_name"))

	// Its chart file is copied into the recent directory.
	_, err = os.Stat(filepath.Join(paths.RecentChartDir(), "M1_10_S1_D1.json"))
	assert.NoError(t, err)
}

func TestServiceRun_MissingInputFails(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := common.NewDefaultConfig()
	cfg.Output.Root = "out"
	date := common.RunDate("20260825")

	svc := NewService(cfg, arbor.NewLogger())
	svc.now = fixedNow
	err := svc.Run(date)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "matcher input missing")
}

func TestServiceRun_NoChartIndex(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := common.NewDefaultConfig()
	cfg.Output.Root = "out"
	date := common.RunDate("20260825")
	paths := common.NewPaths(cfg.Output)
	writeFixtures(t, paths, date)
	require.NoError(t, os.RemoveAll(paths.ChartDir()))

	svc := NewService(cfg, arbor.NewLogger())
	svc.now = fixedNow
	require.NoError(t, svc.Run(date))

	header, rows, err := export.ReadCSV(paths.MatchReportCSV(date))
	require.NoError(t, err)
	idx := export.ColumnIndex(header)
	require.Len(t, rows, 2)
	assert.Empty(t, export.Field(rows[0], idx, "industry_chart_path"))
	assert.Equal(t, "20260824", export.Field(rows[0], idx, "industry_update_date"), "raw date still present without charts")
}
