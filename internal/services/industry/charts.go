package industry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ternarybob/bigrise/internal/export"
	"github.com/ternarybob/bigrise/internal/httpclient"
	"github.com/ternarybob/bigrise/internal/models"
	"github.com/ternarybob/bigrise/internal/pipeline"
)

// downloadCharts fetches the chart JSON for every data point and writes the
// chart index in both CSV and JSON form. A failed download drops that entry
// from the index; it never fails the stage.
func (s *Service) downloadCharts(ctx context.Context, client *httpclient.Client, rows []models.FlatCategoryRow) error {
	byKey := make(map[models.ChartKey]*models.FlatCategoryRow, len(rows))
	keys := make([]models.ChartKey, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		key := models.ChartKey{MainCode: r.MainCode, GroupID: r.GroupID, SubCode: r.SubCode, DataCode: r.DataCode}
		if _, seen := byKey[key]; !seen {
			byKey[key] = r
			keys = append(keys, key)
		}
	}

	s.logger.Info().
		Int("charts", len(keys)).
		Int("workers", s.config.Enrich.IndustryWorkers).
		Msg("Downloading data point charts")

	paths := pipeline.Enrich(ctx, keys, func(ctx context.Context, key models.ChartKey) (string, error) {
		return s.downloadChart(ctx, client, byKey[key])
	}, pipeline.Options{
		Concurrency: s.config.Enrich.IndustryWorkers,
		MinDelay:    s.config.Enrich.MinDelay,
		MaxDelay:    s.config.Enrich.MaxDelay,
		Logger:      s.logger,
	})

	var entries []models.ChartIndexEntry
	for _, key := range keys {
		path := paths[key]
		if path == "" {
			continue
		}
		r := byKey[key]
		entries = append(entries, models.ChartIndexEntry{
			DataType:   r.DataType,
			MainCode:   r.MainCode,
			GroupID:    r.GroupID,
			SubCode:    r.SubCode,
			DataCode:   r.DataCode,
			SubName:    r.SubName,
			DataName:   r.DataName,
			FilePath:   path,
			UpdateDate: r.UpdateDate,
		})
	}

	s.logger.Info().
		Int("downloaded", len(entries)).
		Int("failed", len(keys)-len(entries)).
		Msg("Chart downloads complete")
	return s.writeChartIndex(entries)
}

// downloadChart saves one chart payload and returns its "./" prefixed path
// relative to the project root, the form the matcher expects in the index.
func (s *Service) downloadChart(ctx context.Context, client *httpclient.Client, r *models.FlatCategoryRow) (string, error) {
	url := s.apiURL(fmt.Sprintf("/api/industry/chart/codes/%s/subCodes/%s/dataCodes/%s", r.MainCode, r.SubCode, r.DataCode))
	body, err := client.FetchBytes(ctx, url)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.paths.ChartDir(), r.DataType)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%d_%s_%s.json", r.MainCode, r.GroupID, r.SubCode, r.DataCode)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", err
	}

	return "./" + filepath.ToSlash(filepath.Clean(path)), nil
}

var chartIndexHeader = []string{
	"data_type", "main_code", "group_id", "sub_code", "data_code",
	"sub_name", "data_name", "file_path", "update_date",
}

func (s *Service) writeChartIndex(entries []models.ChartIndexEntry) error {
	values := make([][]string, 0, len(entries))
	for _, e := range entries {
		values = append(values, []string{
			e.DataType, e.MainCode, strconv.Itoa(e.GroupID), e.SubCode, e.DataCode,
			e.SubName, e.DataName, e.FilePath, e.UpdateDate,
		})
	}
	if err := export.WriteCSV(s.paths.ChartIndexCSV(), chartIndexHeader, values); err != nil {
		return err
	}

	manifest, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chart manifest: %w", err)
	}
	if err := os.WriteFile(s.paths.ChartIndexManifest(), manifest, 0644); err != nil {
		return fmt.Errorf("failed to write chart manifest: %w", err)
	}
	return nil
}
