// Package extractor pulls article data out of full web pages using
// prioritised CSS selectors. It complements the feed pipeline: feeds
// give truncated descriptions, the extractor recovers the full story.
package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"baobab/internal/cleaner"
)

// Content selectors ordered by specificity, most specific first.
var contentSelectors = []string{
	"article .entry-content",
	"article .post-content",
	".article-body",
	".article-content",
	".story-body",
	".post-body",
	`[itemprop="articleBody"]`,
	"article",
	".entry-content",
	".post-content",
	"main",
	".content",
	"#content",
}

// Elements stripped before any extraction.
var noiseSelectors = []string{
	"script", "style", "iframe", "noscript",
	"nav", "footer", "header", "aside",
	".ad-container", ".advertisement", ".social-share",
	".related-posts", ".comments", ".sidebar",
	".newsletter-signup", ".popup", ".modal",
	`[role="navigation"]`, `[role="complementary"]`,
}

// Featured-image sources ordered by reliability.
var imageSelectors = []struct {
	selector string
	attr     string
}{
	{`meta[property="og:image"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{".featured-image img", "src"},
	{"article img", "src"},
	{".article-image img", "src"},
	{".hero-image img", "src"},
}

var titleSeparators = []string{" | ", " - ", " – ", " — ", " :: "}

var bylinePrefixRe = regexp.MustCompile(`(?i)^(By|Written by|Author:?)\s*`)
var whitespaceRe = regexp.MustCompile(`\s+`)

const maxContentLength = 50000

// Result is the extracted article data.
type Result struct {
	Title              string `json:"title"`
	Description        string `json:"description"`
	Content            string `json:"content"`
	ImageURL           string `json:"image_url,omitempty"`
	Author             string `json:"author,omitempty"`
	WordCount          int    `json:"word_count"`
	ReadingTimeMinutes int    `json:"reading_time_minutes"`
}

// Extract parses a full HTML page and returns the article it contains.
// baseURL resolves relative image paths.
func Extract(rawHTML, baseURL string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Result{}, err
	}

	doc.Find(strings.Join(noiseSelectors, ", ")).Remove()

	title := extractTitle(doc)
	description := metaContent(doc, "description")
	if description == "" {
		description = metaContent(doc, "og:description")
	}
	image := extractImage(doc, baseURL)
	author := extractAuthor(doc)

	content := ""
	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		content = cleaner.DocumentText(sel)
		if len(content) > 100 {
			break
		}
	}
	if len(content) <= 100 {
		var paragraphs []string
		doc.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= 50 {
				return false
			}
			if text := strings.TrimSpace(s.Text()); text != "" {
				paragraphs = append(paragraphs, text)
			}
			return true
		})
		content = strings.Join(paragraphs, " ")
	}

	content = strings.TrimSpace(whitespaceRe.ReplaceAllString(content, " "))
	if len(content) > maxContentLength {
		content = content[:maxContentLength]
	}
	if len(description) > 500 {
		description = description[:500]
	}

	words := len(strings.Fields(content))
	return Result{
		Title:              title,
		Description:        description,
		Content:            content,
		ImageURL:           image,
		Author:             author,
		WordCount:          words,
		ReadingTimeMinutes: ReadingTime(words),
	}, nil
}

// ReadingTime estimates minutes at roughly 200 words per minute, never
// below one.
func ReadingTime(words int) int {
	minutes := (words + 100) / 200
	if minutes < 1 {
		return 1
	}
	return minutes
}

func extractTitle(doc *goquery.Document) string {
	if og := metaContent(doc, "og:title"); og != "" {
		return og
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		// Page titles often carry a " | Site Name" style suffix
		for _, sep := range titleSeparators {
			if idx := strings.Index(title, sep); idx >= 0 {
				title = strings.TrimSpace(title[:idx])
			}
		}
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func metaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(`meta[property="` + name + `"]`).First()
	if content, ok := sel.Attr("content"); ok && strings.TrimSpace(content) != "" {
		return strings.TrimSpace(content)
	}
	sel = doc.Find(`meta[name="` + name + `"]`).First()
	if content, ok := sel.Attr("content"); ok && strings.TrimSpace(content) != "" {
		return strings.TrimSpace(content)
	}
	return ""
}

func extractImage(doc *goquery.Document, baseURL string) string {
	for _, entry := range imageSelectors {
		sel := doc.Find(entry.selector).First()
		if sel.Length() == 0 {
			continue
		}
		raw, _ := sel.Attr(entry.attr)
		resolved := resolveURL(raw, baseURL)
		if resolved != "" && !strings.HasPrefix(resolved, "data:") {
			return resolved
		}
	}
	return ""
}

func extractAuthor(doc *goquery.Document) string {
	if author := metaContent(doc, "author"); author != "" {
		return author
	}
	if author := metaContent(doc, "article:author"); author != "" {
		return author
	}

	sel := doc.Find(`[itemprop="author"]`).First()
	if sel.Length() > 0 {
		if name := sel.Find(`[itemprop="name"]`).First(); name.Length() > 0 {
			return strings.TrimSpace(name.Text())
		}
		return strings.TrimSpace(sel.Text())
	}

	for _, cls := range []string{"byline", "author", "article-author"} {
		found := ""
		doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			class, _ := s.Attr("class")
			if !strings.Contains(strings.ToLower(class), cls) {
				return true
			}
			text := strings.TrimSpace(s.Text())
			text = bylinePrefixRe.ReplaceAllString(text, "")
			if text != "" && len(text) < 100 {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func resolveURL(raw, baseURL string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if strings.HasPrefix(raw, "/") && baseURL != "" {
		if parsed, err := url.Parse(baseURL); err == nil && parsed.Host != "" {
			return parsed.Scheme + "://" + parsed.Host + raw
		}
	}
	return raw
}
