package nitter

import (
	"io"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hyperdrive/pkg/models"
)

// Status classifies the outcome of a page fetch
type Status string

const (
	StatusOK          Status = "ok"
	StatusRateLimited Status = "rate_limited"
	StatusNotFound    Status = "not_found"
	StatusTransient   Status = "transient"
	StatusFatal       Status = "fatal"
)

// Page is one fetched and parsed proxy page
type Page struct {
	Posts       []models.Post
	Cursor      string
	Status      Status
	TimelineEnd bool
	ErrorText   string
	StatusCode  int
	// Malformed is set when the body could not be parsed at all
	Malformed bool
}

var (
	statusIDRe = regexp.MustCompile(`/status/(\d+)`)
	handleRe   = regexp.MustCompile(`^/([^/?#]+)/`)
)

// ParsePage extracts posts, the next cursor and the end/error markers from a
// proxy HTML page. base is the proxy URL used to absolutize media links.
func ParsePage(r io.Reader, base string) *Page {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return &Page{Status: StatusOK, Malformed: true}
	}
	return parseDocument(doc, base)
}

func parseDocument(doc *goquery.Document, base string) *Page {
	page := &Page{Status: StatusOK}

	if panel := doc.Find(".error-panel").First(); panel.Length() > 0 {
		text := strings.TrimSpace(panel.Text())
		page.ErrorText = text
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "rate"):
			page.Status = StatusRateLimited
		case strings.Contains(lower, "not found"):
			page.Status = StatusNotFound
		default:
			page.Status = StatusFatal
		}
		return page
	}

	doc.Find(".timeline-item").Each(func(_ int, item *goquery.Selection) {
		if post, ok := parsePost(item, base); ok {
			page.Posts = append(page.Posts, post)
		}
	})

	page.Cursor = nextCursor(doc)
	page.TimelineEnd = doc.Find(".timeline-end").Length() > 0
	return page
}

func parsePost(item *goquery.Selection, base string) (models.Post, bool) {
	link := item.Find(".tweet-link").First()
	href, ok := link.Attr("href")
	if !ok {
		return models.Post{}, false
	}
	m := statusIDRe.FindStringSubmatch(href)
	if m == nil {
		return models.Post{}, false
	}

	post := models.Post{
		ID:   m[1],
		Text: strings.TrimSpace(item.Find(".tweet-content").First().Text()),
		Kind: models.KindOriginal,
	}
	if h := handleRe.FindStringSubmatch(href); h != nil {
		post.URL = Permalink(h[1], post.ID)
	}
	if title, ok := item.Find(".tweet-date a").First().Attr("title"); ok {
		post.Timestamp = title
	}

	switch {
	case item.Find(".retweet-header").Length() > 0:
		post.Kind = models.KindRepost
		author := strings.TrimSpace(item.Find(".tweet-body .username").First().Text())
		post.OriginalAuthor = strings.TrimPrefix(author, "@")
	case item.Find(".replying-to").Length() > 0:
		post.Kind = models.KindReply
	}

	item.Find(".attachments img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" {
			return
		}
		if strings.HasPrefix(src, "/") && strings.Contains(src, "/pic/") {
			src = strings.TrimRight(base, "/") + src
		}
		post.Media = append(post.Media, src)
	})

	item.Find(".tweet-stat").Each(func(_ int, stat *goquery.Selection) {
		icon := stat.Find(".icon-container").First()
		if icon.Length() == 0 {
			return
		}
		value := statValue(stat)
		classes := iconClasses(icon)
		switch {
		case strings.Contains(classes, "comment"), strings.Contains(classes, "reply"):
			post.Stats.Replies = ParseStat(value)
		case strings.Contains(classes, "retweet"):
			post.Stats.Reposts = ParseStat(value)
		case strings.Contains(classes, "quote"):
			post.Stats.Quotes = ParseStat(value)
		case strings.Contains(classes, "heart"), strings.Contains(classes, "like"):
			post.Stats.Likes = ParseStat(value)
		}
	})

	return post, true
}

// iconClasses collects the class names of an icon container and its children.
// Some proxy themes put the icon class on an inner span.
func iconClasses(icon *goquery.Selection) string {
	var b strings.Builder
	b.WriteString(icon.AttrOr("class", ""))
	icon.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		b.WriteByte(' ')
		b.WriteString(s.AttrOr("class", ""))
	})
	return b.String()
}

func statValue(stat *goquery.Selection) string {
	if v := stat.Find(".tweet-stat-value, .icon-container + span").First(); v.Length() > 0 {
		return strings.TrimSpace(v.Text())
	}
	return strings.TrimSpace(stat.Text())
}

func nextCursor(doc *goquery.Document) string {
	href, ok := doc.Find(`.show-more a[href*="cursor"]`).First().Attr("href")
	if !ok {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("cursor")
}

// ParseStat converts an engagement counter such as "1.2K", "3M" or "1,024"
// into an integer. Unparseable input yields 0.
func ParseStat(text string) int {
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return 0
	}
	text = strings.ReplaceAll(text, ",", "")

	mult := 1.0
	switch {
	case strings.HasSuffix(text, "K"):
		mult = 1_000
		text = strings.TrimSuffix(text, "K")
	case strings.HasSuffix(text, "M"):
		mult = 1_000_000
		text = strings.TrimSuffix(text, "M")
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0
	}
	return int(math.Round(f * mult))
}
