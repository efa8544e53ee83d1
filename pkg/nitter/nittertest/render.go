// Package nittertest renders Nitter-shaped HTML for tests.
package nittertest

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"hyperdrive/pkg/models"
)

// Handle is the account rendered as the author of original posts
const Handle = "alice"

// Page renders a timeline or search page containing posts. A non-empty cursor
// adds a "Load more" link; end adds the end-of-timeline marker.
func Page(posts []models.Post, cursor string, end bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="timeline">`)
	b.WriteString(`<div class="timeline-item show-more"><a href="/` + Handle + `">Load newest</a></div>`)
	for _, p := range posts {
		b.WriteString(Item(p))
	}
	if cursor != "" {
		fmt.Fprintf(&b, `<div class="show-more"><a href="?cursor=%s">Load more</a></div>`, url.QueryEscape(cursor))
	}
	if end {
		b.WriteString(`<div class="timeline-end"><h2>No more items</h2></div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// ErrorPanel renders a page with a proxy error panel
func ErrorPanel(text string) string {
	return `<html><body><div class="error-panel"><span>` + html.EscapeString(text) + `</span></div></body></html>`
}

// Item renders a single timeline item
func Item(p models.Post) string {
	handle := Handle
	if p.Kind == models.KindRepost && p.OriginalAuthor != "" {
		handle = p.OriginalAuthor
	}

	var b strings.Builder
	b.WriteString(`<div class="timeline-item">`)
	fmt.Fprintf(&b, `<a class="tweet-link" href="/%s/status/%s#m"></a>`, handle, p.ID)
	b.WriteString(`<div class="tweet-body">`)
	if p.Kind == models.KindRepost {
		fmt.Fprintf(&b, `<div class="retweet-header"><span class="icon-container"><span class="icon-retweet"></span> %s retweeted</span></div>`, Handle)
	}
	fmt.Fprintf(&b, `<div class="tweet-header"><a class="username" href="/%s">@%s</a></div>`, handle, handle)
	if p.Timestamp != "" {
		fmt.Fprintf(&b, `<span class="tweet-date"><a href="/%s/status/%s#m" title="%s">1d</a></span>`,
			handle, p.ID, html.EscapeString(p.Timestamp))
	}
	if p.Kind == models.KindReply {
		b.WriteString(`<div class="replying-to">Replying to <a href="/bob">@bob</a></div>`)
	}
	fmt.Fprintf(&b, `<div class="tweet-content media-body">%s</div>`, html.EscapeString(p.Text))
	if len(p.Media) > 0 {
		b.WriteString(`<div class="attachments">`)
		for _, m := range p.Media {
			fmt.Fprintf(&b, `<div class="attachment image"><a class="still-image"><img src="%s"></a></div>`, html.EscapeString(m))
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`<div class="tweet-stats">`)
	stat(&b, "icon-comment", p.Stats.Replies)
	stat(&b, "icon-retweet", p.Stats.Reposts)
	stat(&b, "icon-quote", p.Stats.Quotes)
	stat(&b, "icon-heart", p.Stats.Likes)
	b.WriteString(`</div></div></div>`)
	return b.String()
}

func stat(b *strings.Builder, icon string, n int) {
	fmt.Fprintf(b, `<span class="tweet-stat"><div class="icon-container"><span class="%s"></span> %d</div></span>`, icon, n)
}

// Originals returns n original posts. Ids are numeric, as in real status
// links, and distinct for distinct prefixes; text reads "post <prefix><i>".
func Originals(prefix string, n int) []models.Post {
	posts := make([]models.Post, 0, n)
	for i := 1; i <= n; i++ {
		posts = append(posts, models.Post{
			ID:        StatusID(prefix, i),
			Text:      fmt.Sprintf("post %s%d", prefix, i),
			Timestamp: fmt.Sprintf("Jan %d, 2024 · 10:00 AM UTC", i),
			Kind:      models.KindOriginal,
		})
	}
	return posts
}

// StatusID encodes prefix and i as a numeric status id: a leading 1, three
// digits per prefix byte, then i in four digits.
func StatusID(prefix string, i int) string {
	var b strings.Builder
	b.WriteByte('1')
	for j := 0; j < len(prefix); j++ {
		fmt.Fprintf(&b, "%03d", prefix[j])
	}
	fmt.Fprintf(&b, "%04d", i)
	return b.String()
}
