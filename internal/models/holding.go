package models

// ETFListing is one fund row scraped from the ETF finder page.
type ETFListing struct {
	Name      string
	Price     string
	Change    string
	DetailURL string

	// HoldingsJSON is the raw constituent list serialized into one CSV cell
	// on the intermediate file; empty slice serializes as "[]".
	HoldingsJSON string
}

// RawHolding is one constituent row as scraped from a fund detail page.
// The upstream table headers are Korean; the JSON keys preserved here match
// the intermediate file format consumed by the flatten stage.
type RawHolding struct {
	Rank      string `json:"번호"`
	ItemName  string `json:"종목명"`
	ItemCode  string `json:"종목코드"`
	BasePrice string `json:"기준가"`
	Ratio     string `json:"비중(%)"`
	Value     string `json:"평가액"`
}

// Holding is one (fund, constituent) pair in the flattened ETF output.
type Holding struct {
	FundName  string
	Price     string
	Change    string
	DetailURL string
	Rank      string
	ItemName  string
	ItemCode  string
	BasePrice string
	Ratio     string
	Value     string
}
