package models

// CategoryResponse is the payload returned by the industry category API.
// The tree is four levels deep: main category -> group -> sub-category ->
// data point. Every data point belongs to exactly one sub-category chain.
type CategoryResponse struct {
	Categories []MainCategory `json:"categories"`
}

type MainCategory struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Groups []CategoryGroup `json:"groups"`
}

type CategoryGroup struct {
	GroupID       int           `json:"groupId"`
	GroupName     string        `json:"groupName"`
	SubCategories []SubCategory `json:"subCategories"`
}

type SubCategory struct {
	SubCode        string      `json:"subCode"`
	SubName        string      `json:"subName"`
	UpdateDate     string      `json:"updateDate"`
	DataType       string      `json:"industryDataType"`
	DataCategories []DataPoint `json:"dataCategories"`
}

type DataPoint struct {
	DataCode   string `json:"dataCode"`
	DataName   string `json:"dataName"`
	LastUpdate string `json:"lastUpdateDatetime"`
}

// FlatCategoryRow is one row per data point, carrying the full ancestor
// chain plus enrichment columns. Enrichment is keyed by (MainCode, SubCode),
// so rows sharing a sub-category carry identical enrichment values.
type FlatCategoryRow struct {
	MainCode   string
	MainName   string
	GroupID    int
	GroupName  string
	SubCode    string
	SubName    string
	UpdateDate string
	DataType   string
	DataCode   string
	DataName   string
	LastUpdate string

	// Enrichment columns; always present in output, empty when the lookup
	// for this row's sub-category failed.
	Frequency        string
	Unit             string
	Source           string
	Footnote         string
	YoYFlag          string
	HeaderUpdateDate string
	Companies        string // JSON array of {code,name} serialized into one cell
}

// SubKey identifies a unique (main, sub) category pair for enrichment.
type SubKey struct {
	MainCode string
	SubCode  string
}

// Key returns the enrichment key for this row.
func (r *FlatCategoryRow) Key() SubKey {
	return SubKey{MainCode: r.MainCode, SubCode: r.SubCode}
}

// HeaderMeta is the per-sub-category metadata returned by the header API.
type HeaderMeta struct {
	Frequency  string `json:"frequency"`
	Unit       string `json:"unit"`
	Source     string `json:"source"`
	Footnote   string `json:"footnote"`
	YoYFlag    string `json:"yoyFlag"`
	UpdateDate string `json:"updateDate"`
}

// Company is one entry of a sub-category's company list.
type Company struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SubEnrichment bundles the two lookups performed per sub-category key.
type SubEnrichment struct {
	Meta      HeaderMeta
	Companies []Company
}
