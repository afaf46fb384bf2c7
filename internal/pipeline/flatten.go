package pipeline

import "github.com/ternarybob/bigrise/internal/models"

// FlattenCategories walks the four-level category tree in encounter order
// and emits one row per leaf data point. Every row carries its full ancestor
// path so the table is self-describing.
func FlattenCategories(resp *models.CategoryResponse) []models.FlatCategoryRow {
	var rows []models.FlatCategoryRow
	if resp == nil {
		return rows
	}

	for _, main := range resp.Categories {
		for _, group := range main.Groups {
			for _, sub := range group.SubCategories {
				for _, dp := range sub.DataCategories {
					rows = append(rows, models.FlatCategoryRow{
						MainCode:   main.Code,
						MainName:   main.Name,
						GroupID:    group.GroupID,
						GroupName:  group.GroupName,
						SubCode:    sub.SubCode,
						SubName:    sub.SubName,
						UpdateDate: sub.UpdateDate,
						DataType:   sub.DataType,
						DataCode:   dp.DataCode,
						DataName:   dp.DataName,
						LastUpdate: dp.LastUpdate,
					})
				}
			}
		}
	}
	return rows
}

// SubCategoryKeys returns the distinct (main, sub) pairs of the flattened
// rows in first-encounter order. Enrichment fetches header metadata and
// company lists once per pair, not once per row.
func SubCategoryKeys(rows []models.FlatCategoryRow) []models.SubKey {
	seen := make(map[models.SubKey]bool, len(rows))
	var keys []models.SubKey
	for i := range rows {
		key := rows[i].Key()
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}
