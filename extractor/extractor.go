// Package extractor turns raw page HTML into the structured content
// signals the scorers and the snapshot store work with.
package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/competitor-monitor/backend/compare"
)

// Tags whose entire subtree is discarded before reading body text.
var stripTags = []string{
	"script", "style", "noscript", "nav", "footer", "header",
	"aside", "form", "iframe", "svg", "button", "input", "select",
	"textarea", "figure", "figcaption",
}

var headingLevels = []string{"h1", "h2", "h3", "h4"}

var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// Extracted is the full structured view of one fetched page. Signals
// returns the subset the comparison engine needs.
type Extracted struct {
	Title           string            `json:"title"`
	MetaDescription string            `json:"meta_description"`
	H1              string            `json:"h1"`
	Headings        []compare.Heading `json:"headings"`
	CleanText       string            `json:"clean_text"`
	WordCount       int               `json:"word_count"`
	InternalLinks   []string          `json:"internal_links"`
}

// Signals packages the extracted content as PageSignals for the given URL.
func (e *Extracted) Signals(pageURL string) compare.PageSignals {
	return compare.PageSignals{
		URL:           pageURL,
		Text:          e.CleanText,
		Headings:      e.Headings,
		WordCount:     e.WordCount,
		InternalLinks: e.InternalLinks,
	}
}

// Extract parses raw HTML and returns the content signals for pageURL.
// Malformed markup degrades to empty fields rather than failing; only an
// unreadable document returns an error.
func Extract(html, pageURL string) (*Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(pageURL)
	baseDomain := ""
	if base != nil {
		baseDomain = base.Host
	}

	out := &Extracted{}

	out.Title = strings.TrimSpace(doc.Find("title").First().Text())
	out.MetaDescription, _ = doc.Find(`meta[name="description"]`).Attr("content")
	out.MetaDescription = strings.TrimSpace(out.MetaDescription)

	// Headings in level order, first H1 kept separately. The heading list
	// drives both the heading-structure and FAQ scorers.
	for _, level := range headingLevels {
		doc.Find(level).Each(func(_ int, s *goquery.Selection) {
			text := normalizeSpace(s.Text())
			if text == "" {
				return
			}
			if level == "h1" && out.H1 == "" {
				out.H1 = text
			}
			out.Headings = append(out.Headings, compare.Heading{Level: level, Text: text})
		})
	}

	// Strip noise first so nav and footer link bars do not count as
	// content links.
	for _, tag := range stripTags {
		doc.Find(tag).Remove()
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil || base == nil {
			return
		}
		absolute := base.ResolveReference(ref)
		if absolute.Host != baseDomain {
			return
		}
		absolute.Fragment = ""
		normalized := absolute.String()
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		out.InternalLinks = append(out.InternalLinks, normalized)
	})

	body := doc.Find("body")
	var rawText string
	if body.Length() > 0 {
		rawText = body.Text()
	} else {
		rawText = doc.Text()
	}

	var lines []string
	for _, line := range strings.Split(rawText, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	out.CleanText = blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	out.WordCount = len(strings.Fields(out.CleanText))

	return out, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
