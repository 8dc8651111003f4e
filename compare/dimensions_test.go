package compare

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestScoreWordCount(t *testing.T) {
	cases := []struct {
		words int
		want  int
	}{
		{0, 2},
		{299, 2},
		{300, 4},
		{599, 4},
		{600, 6},
		{899, 6},
		{900, 7},
		{1199, 7},
		{1200, 8},
		{1799, 8},
		{1800, 10},
		{1900, 10},
		{5000, 10},
	}
	for _, tc := range cases {
		got := scoreWordCount(tc.words)
		if got.Score != tc.want {
			t.Errorf("scoreWordCount(%d) = %d, want %d", tc.words, got.Score, tc.want)
		}
	}
}

func TestScoreWordCountEvidence(t *testing.T) {
	got := scoreWordCount(1900)
	if got.Evidence != "1,900 words in extracted body text" {
		t.Errorf("unexpected evidence: %q", got.Evidence)
	}
}

func TestScoreWordCountMonotonic(t *testing.T) {
	prev := 0
	for wc := 0; wc <= 3000; wc += 50 {
		score := scoreWordCount(wc).Score
		if score < prev {
			t.Fatalf("score decreased at %d words: %d -> %d", wc, prev, score)
		}
		prev = score
	}
}

func headingsOf(h2s, h3s int) []Heading {
	var hs []Heading
	hs = append(hs, Heading{Level: LevelH1, Text: "Page Title"})
	for i := 0; i < h2s; i++ {
		hs = append(hs, Heading{Level: LevelH2, Text: "Section"})
	}
	for i := 0; i < h3s; i++ {
		hs = append(hs, Heading{Level: LevelH3, Text: "Subsection"})
	}
	return hs
}

func TestScoreHeadings(t *testing.T) {
	cases := []struct {
		name     string
		h2s, h3s int
		want     int
	}{
		{"no structure", 0, 0, 1},
		{"no structure with h3s", 0, 3, 1},
		{"minimal", 2, 0, 4},
		{"moderate", 4, 0, 6},
		{"rich flat", 5, 0, 7},
		{"rich nested", 5, 2, 9},
		{"many nested", 8, 4, 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := scoreHeadings(headingsOf(tc.h2s, tc.h3s))
			if got.BaseScore != tc.want {
				t.Errorf("scoreHeadings(%d H2, %d H3) base = %d, want %d",
					tc.h2s, tc.h3s, got.BaseScore, tc.want)
			}
		})
	}
}

func TestScoreHeadingsEvidence(t *testing.T) {
	headings := []Heading{
		{Level: LevelH2, Text: "Ticket Prices"},
		{Level: LevelH2, Text: "Seating Plan"},
		{Level: LevelH3, Text: "North Stand"},
	}
	got := scoreHeadings(headings)
	if !strings.HasPrefix(got.Evidence, "2 H2s, 1 H3s") {
		t.Errorf("evidence missing counts: %q", got.Evidence)
	}
	if !strings.Contains(got.Evidence, "Ticket Prices, Seating Plan") {
		t.Errorf("evidence missing H2 texts: %q", got.Evidence)
	}
	if len(got.H2Texts) != 2 {
		t.Errorf("H2Texts = %v, want 2 entries", got.H2Texts)
	}
}

func TestScoreTrustSignals(t *testing.T) {
	text := "Every order comes with a 100% guarantee. We are rated excellent on Trustpilot by thousands of fans."

	got := scoreTrustSignals(text)
	if got.Score != 4 {
		t.Errorf("score = %d, want 4", got.Score)
	}
	if !got.hasCategory("guarantee") || !got.hasCategory("reviews") {
		t.Errorf("categories = %+v, want guarantee and reviews", got.Found)
	}
	for _, hit := range got.Found {
		if !strings.Contains(strings.ToLower(text), strings.ToLower(hit.Quote)) {
			t.Errorf("quote %q is not a substring of the input", hit.Quote)
		}
	}
}

func TestScoreTrustSignalsOnePerCategory(t *testing.T) {
	// Multiple keywords of the same category count once.
	text := "100% guarantee, guaranteed, money back guarantee."
	got := scoreTrustSignals(text)
	if got.Score != 2 {
		t.Errorf("score = %d, want 2", got.Score)
	}
	if len(got.Found) != 1 {
		t.Errorf("found = %+v, want one guarantee hit", got.Found)
	}
}

func TestScoreTrustSignalsEmpty(t *testing.T) {
	got := scoreTrustSignals("Nothing persuasive here at all.")
	if got.Score != 0 || len(got.Found) != 0 {
		t.Errorf("got %+v, want empty result", got)
	}
}

func TestClipRuneBoundary(t *testing.T) {
	if got := clip("short", 80); got != "short" {
		t.Errorf("clip changed a short string: %q", got)
	}
	// A cut landing inside a multi-byte rune backs up to its start.
	got := clip("£40 £45 £50", 11)
	if got != "£40 £45 " {
		t.Errorf("clip = %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("clip produced invalid UTF-8: %q", got)
	}
}

func TestScoreFreshness(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
	}{
		{"none", "Timeless content with no temporal markers.", 0},
		{"one signal", "Prices for the 2025/26 campaign.", 3},
		{"two signals", "The 2025/26 squad and their current form.", 5},
		{"four signals", "Fixtures for 2025/26: Liverpool on March 14, 2026. Current form is strong. See the upcoming matches.", 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := scoreFreshness(tc.text)
			if got.Score != tc.want {
				t.Errorf("scoreFreshness(%q) = %d (signals %v), want %d",
					tc.text, got.Score, got.Signals, tc.want)
			}
		})
	}
}

func TestScoreFreshnessSeasonFormats(t *testing.T) {
	for _, text := range []string{"the 2025/26 season", "in 2026", "the 2025-26 run"} {
		got := scoreFreshness(text)
		if len(got.Signals) == 0 {
			t.Errorf("no season signal detected in %q", text)
		}
	}
}

func TestScoreFAQ(t *testing.T) {
	questionHeadings := func(n int) []Heading {
		texts := []string{
			"How do I buy tickets?",
			"What happens if the match is postponed?",
			"Can I choose my seats?",
			"Where do I collect my tickets?",
			"Is there an age limit?",
		}
		var hs []Heading
		for i := 0; i < n; i++ {
			hs = append(hs, Heading{Level: LevelH3, Text: texts[i]})
		}
		return hs
	}

	cases := []struct {
		name     string
		text     string
		headings []Heading
		want     int
	}{
		{"explicit with five questions", "Frequently asked questions below.", questionHeadings(5), 10},
		{"explicit marker only", "See our FAQ for details.", nil, 7},
		{"three questions no marker", "Plain body text.", questionHeadings(3), 7},
		{"one question", "Plain body text.", questionHeadings(1), 4},
		{"nothing", "Plain body text.", []Heading{{Level: LevelH2, Text: "Prices"}}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := scoreFAQ(tc.text, tc.headings)
			if got.Score != tc.want {
				t.Errorf("score = %d, want %d (explicit=%v headings=%d)",
					got.Score, tc.want, got.HasExplicitFAQ, len(got.QuestionHeadings))
			}
		})
	}
}

func TestScoreInternalLinks(t *testing.T) {
	links := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = "https://example.com/page"
		}
		return out
	}

	cases := []struct {
		count int
		want  int
	}{
		{0, 2},
		{2, 2},
		{3, 5},
		{5, 5},
		{6, 7},
		{9, 7},
		{10, 10},
		{12, 10},
	}
	for _, tc := range cases {
		got := scoreInternalLinks(links(tc.count))
		if got.Score != tc.want {
			t.Errorf("scoreInternalLinks(%d) = %d, want %d", tc.count, got.Score, tc.want)
		}
	}
}
