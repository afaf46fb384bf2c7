package models

// Article is one news list entry aggregated from the section pages.
type Article struct {
	SectionName string
	SectionID3  int
	OfficeID    string
	ArticleID   string
	URL         string
	Title       string
	Press       string
	WDate       string
	SourceFile  string
	Contents    string // filled by the body enrichment stage
}
