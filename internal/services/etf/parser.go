package etf

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/bigrise/internal/models"
)

// parseFinder extracts the fund listing from the ETF finder page. Each fund
// row holds its name in a th whose onclick carries the detail path as the
// first quoted segment.
func parseFinder(baseURL string, html []byte) ([]models.ETFListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	var listings []models.ETFListing
	doc.Find("table tbody tr").Each(func(_ int, tr *goquery.Selection) {
		th := tr.Find("th").First()
		if th.Length() == 0 {
			return
		}

		name := strings.TrimSpace(th.Text())
		onclick, _ := th.Attr("onclick")
		detailURL := resolveDetailURL(baseURL, onclick)

		var price, change string
		tds := tr.Find("td")
		if tds.Length() >= 2 {
			price = strings.TrimSpace(tds.Eq(0).Text())

			changeCell := tds.Eq(1)
			direction := strings.TrimSpace(changeCell.Find("span.blind").Text())
			value := strings.TrimSpace(strings.Replace(strings.TrimSpace(changeCell.Text()), direction, "", 1))
			change = strings.TrimSpace(direction + " " + value)
		}

		listings = append(listings, models.ETFListing{
			Name:      name,
			Price:     price,
			Change:    change,
			DetailURL: detailURL,
		})
	})
	return listings, nil
}

// resolveDetailURL takes the first single-quoted segment of the onclick
// handler and resolves it against the site base.
func resolveDetailURL(baseURL, onclick string) string {
	parts := strings.Split(onclick, "'")
	if len(parts) < 2 {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return parts[1]
	}
	ref, err := url.Parse(parts[1])
	if err != nil {
		return parts[1]
	}
	return base.ResolveReference(ref).String()
}

// parseHoldings extracts the constituent table from a fund detail page.
// Rows without exactly five value cells are layout artifacts and skipped.
func parseHoldings(html []byte) ([]models.RawHolding, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	var holdings []models.RawHolding
	doc.Find(`tbody[data-class="tab3PdfList"] tr`).Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() != 5 {
			return
		}
		holdings = append(holdings, models.RawHolding{
			Rank:      strings.TrimSpace(tr.Find("th").First().Text()),
			ItemName:  strings.TrimSpace(tds.Eq(0).Text()),
			ItemCode:  strings.TrimSpace(tds.Eq(1).Text()),
			BasePrice: strings.TrimSpace(tds.Eq(2).Text()),
			Ratio:     strings.TrimSpace(tds.Eq(3).Text()),
			Value:     strings.TrimSpace(tds.Eq(4).Text()),
		})
	})
	return holdings, nil
}

// holdingsPageURL returns the detail URL with the constituents tab selected.
// URLs that already carry a query string are used as-is.
func holdingsPageURL(detailURL string) string {
	if strings.Contains(detailURL, "?") {
		return detailURL
	}
	return detailURL + "?searchFlag=viewtab3"
}
