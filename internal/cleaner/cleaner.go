// Package cleaner turns raw article HTML into plain text, extracting
// image URLs on the way. Cleaning is DOM-aware via goquery rather than
// regex: structural and ad elements are removed as nodes, then text is
// collected from the remaining tree.
package cleaner

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Elements that are never article content.
var removeTags = []string{"script", "style", "iframe", "nav", "footer", "header", "aside", "noscript"}

// Class or id patterns that indicate ad/promo/navigation containers.
var adClassRe = regexp.MustCompile(`(?i)ad[-_]?|sponsor|promo|sidebar|social[-_]?share|newsletter|popup`)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	bgImageRe    = regexp.MustCompile(`url\(['"]?(https?://[^'")\s]+)['"]?\)`)
)

// Options control cleaning behaviour. Nil fields take their defaults:
// images removed and extracted, minimum input length 100, ad elements
// removed.
type Options struct {
	RemoveImages     *bool `json:"remove_images"`
	ExtractImageURLs *bool `json:"extract_image_urls"`
	MinContentLength *int  `json:"min_content_length"`
	RemoveAdElements *bool `json:"remove_ad_elements"`
}

// Result is the cleaner output.
type Result struct {
	CleanedContent   string   `json:"cleaned_content"`
	ExtractedImages  []string `json:"extracted_images"`
	RemovedCharCount int      `json:"removed_char_count"`
}

// Clean sanitises raw HTML into plain text. Inputs shorter than the
// minimum length are returned untouched.
func Clean(rawHTML string, opts Options) Result {
	removeImages := boolOr(opts.RemoveImages, true)
	extractImages := boolOr(opts.ExtractImageURLs, true)
	minLength := intOr(opts.MinContentLength, 100)
	removeAds := boolOr(opts.RemoveAdElements, true)

	if rawHTML == "" || len(rawHTML) < minLength {
		return Result{CleanedContent: rawHTML, ExtractedImages: []string{}}
	}

	originalLength := len(rawHTML)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		// Unparseable input degrades to whitespace-normalised text
		text := whitespaceRe.ReplaceAllString(rawHTML, " ")
		return Result{
			CleanedContent:   strings.TrimSpace(text),
			ExtractedImages:  []string{},
			RemovedCharCount: originalLength - len(text),
		}
	}

	images := []string{}
	if extractImages {
		images = ExtractImages(doc)
	}

	doc.Find(strings.Join(removeTags, ", ")).Remove()

	if removeAds {
		doc.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
			class, _ := s.Attr("class")
			id, _ := s.Attr("id")
			if adClassRe.MatchString(class) || adClassRe.MatchString(id) {
				s.Remove()
			}
		})
	}

	if removeImages {
		doc.Find("img, figure, picture, figcaption").Remove()
	}

	text := DocumentText(doc.Selection)
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = compressRuns(text)

	return Result{
		CleanedContent:   text,
		ExtractedImages:  images,
		RemovedCharCount: originalLength - len(text),
	}
}

// ExtractImages collects valid image URLs from img tags, source srcset
// candidates and inline background-image styles, in document order,
// deduplicated.
func ExtractImages(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	images := []string{}

	add := func(url string) {
		url = NormaliseImageURL(url)
		if url != "" && !seen[url] {
			seen[url] = true
			images = append(images, url)
		}
	}

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		add(src)
	})
	doc.Find("source[srcset]").Each(func(_ int, s *goquery.Selection) {
		srcset, _ := s.Attr("srcset")
		// srcset can list multiple candidates; take the first URL
		first := strings.SplitN(srcset, ",", 2)[0]
		first = strings.SplitN(strings.TrimSpace(first), " ", 2)[0]
		add(first)
	})
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if m := bgImageRe.FindStringSubmatch(style); m != nil {
			add(m[1])
		}
	})
	return images
}

// NormaliseImageURL validates an image URL, promoting protocol-relative
// URLs to https and rejecting non-http(s) schemes.
func NormaliseImageURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "//") {
		url = "https:" + url
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return ""
	}
	return url
}

// DocumentText extracts the text content of a selection, separating
// adjacent blocks with a single space.
func DocumentText(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
			*parts = append(*parts, trimmed)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// compressRuns shortens any character repeated four or more times to
// two occurrences (separator noise like ===== or -----).
func compressRuns(s string) string {
	runes := []rune(s)
	var out []rune
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		run := j - i
		if run >= 4 {
			out = append(out, runes[i], runes[i])
		} else {
			out = append(out, runes[i:j]...)
		}
		i = j
	}
	return string(out)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
