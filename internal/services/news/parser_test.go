package news

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

func TestNormalizeNewsURL(t *testing.T) {
	const base = "https://finance.naver.com"

	tests := []struct {
		name    string
		href    string
		wantOID string
		wantAID string
		wantURL string
	}{
		{
			"path style",
			"https://n.news.naver.com/mnews/article/015/0005678901",
			"015", "0005678901",
			"https://n.news.naver.com/mnews/article/015/0005678901",
		},
		{
			"oid aid query",
			"/news/news_read.naver?oid=018&aid=0006123456&mode=LSS3D",
			"018", "0006123456",
			"https://n.news.naver.com/mnews/article/018/0006123456",
		},
		{
			"office_id article_id query",
			"/news/news_read.naver?office_id=016&article_id=0002345678",
			"016", "0002345678",
			"https://n.news.naver.com/mnews/article/016/0002345678",
		},
		{
			"officeId articleId query",
			"https://n.news.naver.com/article/read?officeId=014&articleId=0004987654",
			"014", "0004987654",
			"https://n.news.naver.com/mnews/article/014/0004987654",
		},
		{
			"html escaped query",
			"/news/news_read.naver?oid=018&amp;aid=0006123456",
			"018", "0006123456",
			"https://n.news.naver.com/mnews/article/018/0006123456",
		},
		{
			"unrecognized link resolved against base",
			"/news/other_page.naver?x=1",
			"", "",
			"https://finance.naver.com/news/other_page.naver?x=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oid, aid, normalized := normalizeNewsURL(base, tt.href)
			assert.Equal(t, tt.wantOID, oid)
			assert.Equal(t, tt.wantAID, aid)
			assert.Equal(t, tt.wantURL, normalized)
		})
	}
}

const listFixture = `
<ul>
<dd class="articleSubject">
 <a href="/news/news_read.naver?oid=018&amp;aid=0006123456" title="코스피 상승 마감">코스피 상승 마감</a></dd>
<dd class="articleSummary">
 요약문...
 <span class="press">이데일리</span>
 <span class="wdate">2026-08-24 16:10</span>
</dd>
<dd class="articleSubject">
 <a href="https://n.news.naver.com/mnews/article/015/0005678901" title="반도체 수출 &quot;호조&quot;">반도체 수출 호조</a></dd>
<dd class="articleSummary">
 <span class="press">한국경제</span>
 <span class="wdate">2026-08-24 15:55</span>
</dd>
</ul>`

func TestParseListPage(t *testing.T) {
	entries := parseListPage(listFixture)
	require.Len(t, entries, 2)

	assert.Equal(t, "코스피 상승 마감", entries[0].Title)
	assert.Equal(t, "이데일리", entries[0].Press)
	assert.Equal(t, "2026-08-24 16:10", entries[0].WDate)
	assert.Equal(t, "/news/news_read.naver?oid=018&amp;aid=0006123456", entries[0].Href)

	assert.Equal(t, `반도체 수출 "호조"`, entries[1].Title, "entities in titles are unescaped")
	assert.Equal(t, "한국경제", entries[1].Press)
}

func TestParseMaxPage(t *testing.T) {
	tests := []struct {
		name string
		page string
		want int
	}{
		{"several links", `<a href="?page=2">2</a><a href="?page=10">10</a><a href="?page=3">3</a>`, 10},
		{"no pagination", `<p>기사 없음</p>`, 1},
		{"single page link", `<a href="/list?page=4&x=1">다음</a>`, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseMaxPage(tt.page))
		})
	}
}

func TestDecodeEUCKR(t *testing.T) {
	encoded, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte("시황 뉴스"))
	require.NoError(t, err)

	assert.Equal(t, "시황 뉴스", decodeEUCKR(encoded))
}

func TestParseDumpFileName(t *testing.T) {
	section, page, ok := parseDumpFileName("naver_news_list_20260824_s401_p3.html")
	require.True(t, ok)
	assert.Equal(t, 401, section)
	assert.Equal(t, 3, page)

	_, _, ok = parseDumpFileName("random.html")
	assert.False(t, ok)
}

func TestSectionName(t *testing.T) {
	assert.Equal(t, "시황", SectionName(401))
	assert.Equal(t, "환율", SectionName(429))
	assert.Empty(t, SectionName(999))
}

func TestExtractArticleText(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			"dic_area preferred",
			`<html><body><div id="dic_area">본문  첫째 줄
   둘째 줄</div><article>무시</article></body></html>`,
			"본문 첫째 줄 둘째 줄",
		},
		{
			"article fallback",
			`<html><body><article>대체 본문</article></body></html>`,
			"대체 본문",
		},
		{
			"no body",
			`<html><body><p>목록 페이지</p></body></html>`,
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractArticleText([]byte(tt.page)))
		})
	}
}
