package models

// ChartIndexEntry records one downloaded chart artifact. The index file is
// written as both CSV and a JSON manifest; FilePath is relative to the
// project root and prefixed "./".
type ChartIndexEntry struct {
	DataType   string `json:"data_type"`
	MainCode   string `json:"main_code"`
	GroupID    int    `json:"group_id"`
	SubCode    string `json:"sub_code"`
	DataCode   string `json:"data_code"`
	SubName    string `json:"sub_name"`
	DataName   string `json:"data_name"`
	FilePath   string `json:"file_path"`
	UpdateDate string `json:"update_date"`
}

// ChartKey identifies a chart artifact for the matcher's index join.
type ChartKey struct {
	MainCode string
	GroupID  int
	SubCode  string
	DataCode string
}

// Key returns the join key for this entry.
func (e *ChartIndexEntry) Key() ChartKey {
	return ChartKey{MainCode: e.MainCode, GroupID: e.GroupID, SubCode: e.SubCode, DataCode: e.DataCode}
}
