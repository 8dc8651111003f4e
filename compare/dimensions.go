package compare

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// The deterministic scorers are total functions: malformed or empty input
// lands in the lowest tier, never an error.

// ── Word count ────────────────────────────────────────────────────────────

type wordCountResult struct {
	Score    int
	Evidence string
}

func scoreWordCount(wc int) wordCountResult {
	var score int
	switch {
	case wc < 300:
		score = 2
	case wc < 600:
		score = 4
	case wc < 900:
		score = 6
	case wc < 1200:
		score = 7
	case wc < 1800:
		score = 8
	default:
		score = 10
	}
	return wordCountResult{
		Score:    score,
		Evidence: fmt.Sprintf("%s words in extracted body text", groupThousands(wc)),
	}
}

// groupThousands renders 1900 as "1,900" for evidence strings.
func groupThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// ── Heading structure (base) ──────────────────────────────────────────────

// headingFacts carries the measured half of the heading dimension. The
// judge's diversity adjustment is applied later by the aggregator.
type headingFacts struct {
	BaseScore int
	H2Texts   []string
	H3Count   int
	Evidence  string
}

func scoreHeadings(headings []Heading) headingFacts {
	var h2Texts []string
	h3Count := 0
	for _, h := range headings {
		switch h.Level {
		case LevelH2:
			h2Texts = append(h2Texts, h.Text)
		case LevelH3:
			h3Count++
		}
	}
	n2 := len(h2Texts)

	var base int
	switch {
	case n2 == 0:
		base = 1
	case n2 <= 2:
		base = 4
	case n2 <= 4:
		base = 6
	case h3Count > 0:
		base = 9
	default:
		base = 7
	}

	evidence := fmt.Sprintf("%d H2s, %d H3s", n2, h3Count)
	if n2 > 0 {
		shown := h2Texts
		if len(shown) > 5 {
			shown = shown[:5]
		}
		evidence += ". H2s: " + strings.Join(shown, ", ")
	}

	return headingFacts{BaseScore: base, H2Texts: h2Texts, H3Count: h3Count, Evidence: evidence}
}

// ── Trust signals ─────────────────────────────────────────────────────────

// trustCategory pairs a category name with its ordered trigger phrases.
// First phrase hit wins and its surrounding window becomes the quote.
// New categories are additive: append here, nothing else changes.
type trustCategory struct {
	Name     string
	Keywords []string
}

var trustCategories = []trustCategory{
	{"guarantee", []string{"100% guarantee", "money back guarantee", "guaranteed", "100%"}},
	{"reviews", []string{"trustpilot", "reviews", "rated", "stars", "rating"}},
	{"experience", []string{"years experience", "since 19", "since 20", "established in"}},
	{"security", []string{"secure payment", "ssl", "secure checkout", "safe and secure", "encrypted"}},
	{"official", []string{"official", "authorised", "authorized", "licensed seller", "official partner"}},
}

type trustHit struct {
	Category string
	Quote    string
}

type trustResult struct {
	Score int
	Found []trustHit
}

func (t trustResult) hasCategory(name string) bool {
	for _, hit := range t.Found {
		if hit.Category == name {
			return true
		}
	}
	return false
}

func scoreTrustSignals(text string) trustResult {
	var found []trustHit
	for _, cat := range trustCategories {
		for _, kw := range cat.Keywords {
			if quote := FindQuote(text, kw, defaultQuoteContext); quote != "" {
				found = append(found, trustHit{Category: cat.Name, Quote: quote})
				break
			}
		}
	}
	score := len(found) * 2
	if score > 10 {
		score = 10
	}
	return trustResult{Score: score, Found: found}
}

// ── Freshness signals ─────────────────────────────────────────────────────

var (
	seasonRe = regexp.MustCompile(`\b(202[5-9](?:/\d{2})?|2025-2[0-9])\b`)

	fixtureDateRe = regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|` +
		`September|October|November|December)\s+\d{1,2}(?:st|nd|rd|th)?,?\s+202[5-9]\b`)
	looseFixtureRe = regexp.MustCompile(`\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2}\b`)

	formLanguageRe  = regexp.MustCompile(`(?i)\b(current form|recent results?|latest results?|this season)\b`)
	freshLanguageRe = regexp.MustCompile(`(?i)\b(upcoming|latest|new for|new season)\b`)
)

type freshnessSignal struct {
	Kind     string
	Evidence string
}

type freshnessResult struct {
	Score   int
	Signals []freshnessSignal
}

func scoreFreshness(text string) freshnessResult {
	var signals []freshnessSignal

	if m := seasonRe.FindString(text); m != "" {
		signals = append(signals, freshnessSignal{"season", fmt.Sprintf("season/year reference: '%s'", m)})
	}

	if m := fixtureDateRe.FindString(text); m != "" {
		signals = append(signals, freshnessSignal{"fixtures", fmt.Sprintf("fixture date: '%s'", clip(m, 60))})
	} else if looseFixtureRe.MatchString(text) {
		signals = append(signals, freshnessSignal{"fixtures", "fixture dates present"})
	}

	if m := formLanguageRe.FindString(text); m != "" {
		signals = append(signals, freshnessSignal{"form", fmt.Sprintf("form/results language: '%s'", clip(m, 50))})
	}

	if m := freshLanguageRe.FindString(text); m != "" {
		signals = append(signals, freshnessSignal{"language", fmt.Sprintf("freshness language: '%s'", m)})
	}

	score := int(math.Round(float64(len(signals)) * 2.5))
	if score > 10 {
		score = 10
	}
	return freshnessResult{Score: score, Signals: signals}
}

// clip truncates s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ── FAQ coverage ──────────────────────────────────────────────────────────

var faqMarkers = []string{"frequently asked", "faq", "common questions", "people also ask"}

var questionStarts = []string{
	"how ", "what ", "where ", "when ", "can ", "do ", "is ",
	"are ", "why ", "which ", "will ",
}

type faqResult struct {
	Score            int
	HasExplicitFAQ   bool
	QuestionHeadings []string
	Evidence         string
}

func scoreFAQ(text string, headings []Heading) faqResult {
	lower := strings.ToLower(text)
	hasExplicit := false
	for _, kw := range faqMarkers {
		if strings.Contains(lower, kw) {
			hasExplicit = true
			break
		}
	}

	var questionHeadings []string
	for _, h := range headings {
		ht := strings.ToLower(h.Text)
		for _, q := range questionStarts {
			if strings.HasPrefix(ht, q) {
				questionHeadings = append(questionHeadings, h.Text)
				break
			}
		}
	}
	count := len(questionHeadings)

	var score int
	switch {
	case hasExplicit && count >= 5:
		score = 10
	case hasExplicit || count >= 3:
		score = 7
	case count >= 1:
		score = 4
	default:
		score = 0
	}

	var evidence string
	switch {
	case hasExplicit && count > 0:
		evidence = fmt.Sprintf("Explicit FAQ section with %d question headings", count)
	case hasExplicit:
		evidence = "Explicit FAQ section found (no question-format headings detected)"
	case count > 0:
		evidence = fmt.Sprintf("%d question-format heading(s) found", count)
	default:
		evidence = "No FAQ section or question-format headings found"
	}

	return faqResult{
		Score:            score,
		HasExplicitFAQ:   hasExplicit,
		QuestionHeadings: questionHeadings,
		Evidence:         evidence,
	}
}

// ── Internal linking ──────────────────────────────────────────────────────

type linkResult struct {
	Score    int
	Count    int
	Evidence string
}

func scoreInternalLinks(links []string) linkResult {
	count := len(links)
	var score int
	switch {
	case count >= 10:
		score = 10
	case count >= 6:
		score = 7
	case count >= 3:
		score = 5
	default:
		score = 2
	}
	return linkResult{
		Score:    score,
		Count:    count,
		Evidence: fmt.Sprintf("%d internal links found", count),
	}
}
