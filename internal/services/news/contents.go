package news

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractArticleText pulls the body text out of an article page. The mobile
// article layout keeps the body in div#dic_area; older layouts use a bare
// article element. Whitespace runs are collapsed to single spaces.
func extractArticleText(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}

	body := doc.Find("div#dic_area").First()
	if body.Length() == 0 {
		body = doc.Find("article").First()
	}
	if body.Length() == 0 {
		return ""
	}
	return strings.Join(strings.Fields(body.Text()), " ")
}
