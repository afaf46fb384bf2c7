package news

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// sectionNames maps the finance news section IDs to their display names.
var sectionNames = map[int]string{
	401: "시황",
	402: "기업",
	403: "해외",
	404: "채권",
	406: "공시",
	429: "환율",
}

// SectionName returns the display name for a section ID, empty if unknown.
func SectionName(section int) string {
	return sectionNames[section]
}

// articlePattern matches one list entry: subject anchor with href and title,
// followed by the summary block carrying press and wdate spans.
var articlePattern = regexp.MustCompile(
	`<dd class="articleSubject">\s*` +
		`<a href="([^"]+)"[^>]*title="([^"]+)">[^<]+</a>\s*</dd>\s*` +
		`<dd class="articleSummary">[\s\S]*?` +
		`<span class="press">([^<]+)</span>[\s\S]*?` +
		`<span class="wdate">([^<]+)</span>`)

var pageLinkPattern = regexp.MustCompile(`page=(\d+)`)

var mnewsPathPattern = regexp.MustCompile(`/mnews/article/(\d{3})/(\d+)`)

// decodeEUCKR converts a cp949 page body to UTF-8, replacing undecodable
// bytes instead of failing.
func decodeEUCKR(body []byte) string {
	decoded, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

// parseMaxPage returns the highest page number linked from a section list
// page, 1 when no pagination links are present.
func parseMaxPage(page string) int {
	maxPage := 1
	for _, m := range pageLinkPattern.FindAllStringSubmatch(page, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
			maxPage = n
		}
	}
	return maxPage
}

// listEntry is one raw match from a section list page.
type listEntry struct {
	Href  string
	Title string
	Press string
	WDate string
}

func parseListPage(page string) []listEntry {
	var entries []listEntry
	for _, m := range articlePattern.FindAllStringSubmatch(page, -1) {
		entries = append(entries, listEntry{
			Href:  m[1],
			Title: strings.TrimSpace(html.UnescapeString(m[2])),
			Press: strings.TrimSpace(html.UnescapeString(m[3])),
			WDate: strings.TrimSpace(html.UnescapeString(m[4])),
		})
	}
	return entries
}

// normalizeNewsURL resolves the various article link shapes to the canonical
// mobile article URL. Links carrying no recognizable IDs are resolved against
// the list site and returned with empty IDs.
func normalizeNewsURL(baseURL, rawHref string) (officeID, articleID, normalized string) {
	href := html.UnescapeString(rawHref)

	if m := mnewsPathPattern.FindStringSubmatch(href); m != nil {
		return m[1], m[2], canonicalArticleURL(m[1], m[2])
	}

	if u, err := url.Parse(href); err == nil {
		qs := u.Query()
		pairs := [][2]string{
			{qs.Get("oid"), qs.Get("aid")},
			{qs.Get("office_id"), qs.Get("article_id")},
			{qs.Get("officeId"), qs.Get("articleId")},
		}
		for _, p := range pairs {
			if p[0] != "" && p[1] != "" {
				return p[0], p[1], canonicalArticleURL(p[0], p[1])
			}
		}
	}

	if base, err := url.Parse(baseURL); err == nil {
		if ref, err := url.Parse(href); err == nil {
			return "", "", base.ResolveReference(ref).String()
		}
	}
	return "", "", href
}

func canonicalArticleURL(officeID, articleID string) string {
	return fmt.Sprintf("https://n.news.naver.com/mnews/article/%s/%s", officeID, articleID)
}

// dumpFilePattern extracts section and page from a dump file name.
var dumpFilePattern = regexp.MustCompile(`_s(\d+)_p(\d+)\.html$`)

func parseDumpFileName(name string) (section, page int, ok bool) {
	m := dumpFilePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	section, _ = strconv.Atoi(m[1])
	page, _ = strconv.Atoi(m[2])
	return section, page, true
}
