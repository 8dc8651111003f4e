package compare

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/competitor-monitor/backend/judge"
)

// defaultQuoteContext is how many characters after a keyword hit are kept
// in an evidence quote; 20 characters before the hit are always included.
const defaultQuoteContext = 80

// FindQuote returns a short verbatim excerpt of text surrounding the first
// case-insensitive occurrence of keyword, or "" when the keyword is absent.
// The excerpt is always a literal substring of text, never fabricated.
func FindQuote(text, keyword string, context int) string {
	if text == "" || keyword == "" {
		return ""
	}
	idx := strings.Index(strings.ToLower(text), strings.ToLower(keyword))
	if idx < 0 {
		return ""
	}
	start := idx - 20
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	end := idx + context
	if end > len(text) {
		end = len(text)
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return strings.TrimSpace(text[start:end])
}

// ── Evidence formatters for the report ────────────────────────────────────

// formatQuestionAnswers renders per-question coverage with quotes, keeping
// the fixed question order so both sides read the same way.
func formatQuestionAnswers(questions []string, answers map[string]judge.Answer) string {
	if len(answers) == 0 {
		return "No question coverage data available."
	}
	var lines []string
	for _, q := range questions {
		a, ok := answers[q]
		if !ok {
			continue
		}
		tick := "✗"
		if a.Answered {
			tick = "✓"
		}
		line := tick + " " + q
		if a.Quote != "" {
			line += fmt.Sprintf(": %q", a.Quote)
		}
		lines = append(lines, line)
	}
	// Any answers keyed off-list still count as evidence rather than vanish.
	if len(lines) == 0 {
		for q, a := range answers {
			tick := "✗"
			if a.Answered {
				tick = "✓"
			}
			lines = append(lines, tick+" "+q)
		}
	}
	return strings.Join(lines, "\n")
}

func formatTrust(found []trustHit) string {
	if len(found) == 0 {
		return "No trust signals detected."
	}
	parts := make([]string, 0, len(found))
	for _, hit := range found {
		parts = append(parts, fmt.Sprintf("%s: %q", hit.Category, clip(hit.Quote, 80)))
	}
	return strings.Join(parts, "; ")
}

var transactionalLabels = []struct {
	Label string
	Pick  func(judge.SideClarity) judge.Element
}{
	{"CTA", func(s judge.SideClarity) judge.Element { return s.CTA }},
	{"Price Range", func(s judge.SideClarity) judge.Element { return s.PriceRange }},
	{"Delivery Method", func(s judge.SideClarity) judge.Element { return s.DeliveryMethod }},
	{"Booking Process", func(s judge.SideClarity) judge.Element { return s.BookingProcess }},
}

func formatTransactional(side *judge.SideClarity) string {
	if side == nil {
		return "No transactional data available."
	}
	lines := make([]string, 0, len(transactionalLabels))
	for _, el := range transactionalLabels {
		e := el.Pick(*side)
		if e.Found {
			lines = append(lines, fmt.Sprintf("✓ %s: %q", el.Label, e.Quote))
		} else {
			lines = append(lines, fmt.Sprintf("✗ %s: not found", el.Label))
		}
	}
	return strings.Join(lines, "\n")
}

func formatFreshness(signals []freshnessSignal) string {
	if len(signals) == 0 {
		return "No freshness signals detected."
	}
	parts := make([]string, 0, len(signals))
	for _, s := range signals {
		parts = append(parts, s.Evidence)
	}
	return strings.Join(parts, "; ")
}
