// Package feedparser turns raw RSS/Atom/RDF XML into article records.
// gofeed handles format detection and namespace normalisation; image
// extraction walks the media namespaces before falling back to the
// first img tag in the entry HTML.
package feedparser

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"baobab/internal/core"
)

// Ad and tracking domains that never host article images.
var adDomains = []string{
	"doubleclick.net", "googlesyndication.com", "googleadservices.com",
	"facebook.com/tr", "amazon-adsystem.com", "adnxs.com", "outbrain.com",
	"taboola.com", "criteo.com", "adsrvr.org", "rubiconproject.com",
	"pubmatic.com", "advertising.com", "adroll.com", "mathtag.com",
	"bidswitch.net", "sharethis.com", "addthis.com",
}

const maxEntries = 20

var whitespaceRe = regexp.MustCompile(`\s+`)

var summaryPolicy = bluemonday.StrictPolicy()

// Result is the parsed feed.
type Result struct {
	Articles  []core.Article `json:"articles"`
	FeedTitle string         `json:"feed_title"`
	ItemCount int            `json:"item_count"`
}

// Parse parses feed XML into article records attributed to source. At
// most the 20 newest entries are returned; entries without a usable
// title or link are skipped. Malformed XML that yields no entries is an
// error.
func Parse(xml string, source core.Source) (Result, error) {
	if strings.TrimSpace(xml) == "" {
		return Result{Articles: []core.Article{}}, fmt.Errorf("empty feed content")
	}

	feed, err := gofeed.NewParser().ParseString(xml)
	if err != nil {
		return Result{Articles: []core.Article{}}, fmt.Errorf("feed parse error: %w", err)
	}

	articles := make([]core.Article, 0, len(feed.Items))
	for i, item := range feed.Items {
		if i >= maxEntries {
			break
		}
		if article, ok := parseItem(item, source); ok {
			articles = append(articles, article)
		}
	}

	return Result{
		Articles:  articles,
		FeedTitle: feed.Title,
		ItemCount: len(feed.Items),
	}, nil
}

func parseItem(item *gofeed.Item, source core.Source) (core.Article, bool) {
	title := cleanText(item.Title)
	if title == "" {
		return core.Article{}, false
	}

	link := item.Link
	if link == "" {
		link = item.GUID
	}
	if link == "" {
		return core.Article{}, false
	}

	description := CleanSummary(item.Description)
	if len(description) > 500 {
		description = description[:500]
	}

	// Prefer content:encoded, fall back to the summary HTML
	content := item.Content
	if content == "" {
		content = item.Description
	}

	guid := item.GUID
	if guid == "" {
		guid = link
	}

	return core.Article{
		Title:       title,
		Slug:        core.Slugify(title),
		Description: cleanText(description),
		Content:     content,
		Author:      itemAuthor(item),
		Source:      source.Name,
		SourceID:    source.ID,
		CategoryID:  source.Category,
		CountryID:   source.CountryID,
		PublishedAt: publishedAt(item),
		ImageURL:    extractImage(item),
		OriginalURL: link,
		RSSGuid:     guid,
	}, true
}

// itemAuthor returns the entry author. RSS author fields hold free-form
// text that gofeed may file under Email, so both fields are checked.
func itemAuthor(item *gofeed.Item) string {
	people := item.Authors
	if item.Author != nil {
		people = append([]*gofeed.Person{item.Author}, people...)
	}
	for _, p := range people {
		if p == nil {
			continue
		}
		if p.Name != "" {
			return cleanText(p.Name)
		}
		if p.Email != "" {
			return cleanText(p.Email)
		}
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return cleanText(item.DublinCoreExt.Creator[0])
	}
	return ""
}

func publishedAt(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	if item.Published != "" {
		return item.Published
	}
	return item.Updated
}

// extractImage finds the best image for an entry: media:thumbnail, then
// media:content, then image enclosures, then the feed-level item image,
// then the first img tag in the entry HTML.
func extractImage(item *gofeed.Item) string {
	if url := mediaExtensionURL(item, "thumbnail", false); url != "" {
		return url
	}
	if url := mediaExtensionURL(item, "content", true); url != "" {
		return url
	}

	for _, enc := range item.Enclosures {
		if enc != nil && strings.Contains(enc.Type, "image") && isValidImageURL(enc.URL) {
			return enc.URL
		}
	}

	if item.Image != nil && isValidImageURL(item.Image.URL) {
		return item.Image.URL
	}

	for _, htmlField := range []string{item.Description, item.Content} {
		if url := firstImageInHTML(htmlField); url != "" {
			return url
		}
	}
	return ""
}

func mediaExtensionURL(item *gofeed.Item, element string, wantImageType bool) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	for _, ext := range media[element] {
		url := ext.Attrs["url"]
		if url == "" {
			continue
		}
		if wantImageType {
			if strings.Contains(ext.Attrs["type"], "image") || isValidImageURL(url) {
				return url
			}
			continue
		}
		if isValidImageURL(url) {
			return url
		}
	}
	return ""
}

func firstImageInHTML(htmlField string) string {
	if htmlField == "" || !strings.Contains(htmlField, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlField))
	if err != nil {
		return ""
	}
	src, ok := doc.Find("img[src]").First().Attr("src")
	if !ok {
		return ""
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	if isValidImageURL(src) {
		return src
	}
	return ""
}

func isValidImageURL(url string) bool {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	lower := strings.ToLower(url)
	for _, domain := range adDomains {
		if strings.Contains(lower, domain) {
			return false
		}
	}
	return true
}

// CleanSummary strips markup from feed summary HTML, leaving plain text.
func CleanSummary(summary string) string {
	if summary == "" {
		return ""
	}
	text := summaryPolicy.Sanitize(summary)
	text = html.UnescapeString(text)
	return cleanText(text)
}

func cleanText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
