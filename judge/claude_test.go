package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func newTestClaude(t *testing.T, handler http.HandlerFunc) *Claude {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("ANTHROPIC_API_URL", server.URL)
	t.Setenv("ANTHROPIC_MODEL", "test-model")

	c, err := NewClaude()
	if err != nil {
		t.Fatalf("NewClaude: %v", err)
	}
	return c
}

// modelReply wraps a text payload in the messages API response shape.
func modelReply(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	resp := map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encode reply: %v", err)
	}
}

func TestNewClaudeNoAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewClaude(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestCompare(t *testing.T) {
	judgment := Judgment{
		HeadingDiversity: HeadingDiversity{
			Mine:       DiversityVerdict{ScoreAdjustment: 1, Verdict: "varied"},
			Competitor: DiversityVerdict{ScoreAdjustment: -1, Verdict: "templated"},
		},
		QuestionCoverage: QuestionCoverage{
			Mine: SideCoverage{
				Score: 6,
				Answers: map[string]Answer{
					"How much do tickets cost?": {Answered: true, Quote: "prices start at £40"},
				},
			},
		},
		ContentGaps:       "Nothing major.",
		KeywordsTheyCover: []string{"hospitality"},
		Recommendations:   "Keep going.",
	}
	payload, _ := json.Marshal(judgment)

	var gotHeaders http.Header
	c := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		// Fences on purpose: the client must strip them.
		modelReply(t, w, "```json\n"+string(payload)+"\n```")
	})

	req := Request{
		Slug:   "arsenal",
		MyText: "Ticket prices start at £40 for league matches.",
	}
	got, err := c.Compare(context.Background(), req)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	if gotHeaders.Get("x-api-key") != "test-key" {
		t.Errorf("x-api-key = %q", gotHeaders.Get("x-api-key"))
	}
	if gotHeaders.Get("anthropic-version") == "" {
		t.Error("anthropic-version header missing")
	}

	if got.HeadingDiversity.Mine.ScoreAdjustment != 1 {
		t.Errorf("adjustment = %d, want 1", got.HeadingDiversity.Mine.ScoreAdjustment)
	}
	if got.ContentGaps != "Nothing major." {
		t.Errorf("content gaps = %q", got.ContentGaps)
	}

	// The quoted answer is a verbatim substring of MyText, so it survives.
	ans := got.QuestionCoverage.Mine.Answers["How much do tickets cost?"]
	if ans.Quote != "prices start at £40" {
		t.Errorf("quote = %q, want it kept", ans.Quote)
	}
}

func TestCompareDropsFabricatedQuotes(t *testing.T) {
	judgment := Judgment{
		QuestionCoverage: QuestionCoverage{
			Mine: SideCoverage{
				Answers: map[string]Answer{
					"How do I actually buy tickets?": {Answered: true, Quote: "this text appears nowhere"},
				},
			},
		},
		TransactionalClarity: TransactionalClarity{
			Competitor: SideClarity{
				CTA: Element{Found: true, Quote: "Buy Now"},
			},
		},
	}
	payload, _ := json.Marshal(judgment)

	c := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		modelReply(t, w, string(payload))
	})

	got, err := c.Compare(context.Background(), Request{
		Slug:           "arsenal",
		MyText:         "Completely different page copy.",
		CompetitorText: "Click Buy Now to secure seats.",
	})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	ans := got.QuestionCoverage.Mine.Answers["How do I actually buy tickets?"]
	if ans.Quote != "" {
		t.Errorf("fabricated quote kept: %q", ans.Quote)
	}
	if !ans.Answered {
		t.Error("answered flag must survive quote removal")
	}
	if got.TransactionalClarity.Competitor.CTA.Quote != "Buy Now" {
		t.Errorf("verbatim CTA quote dropped: %q", got.TransactionalClarity.Competitor.CTA.Quote)
	}
}

func TestCompareClampsAdjustments(t *testing.T) {
	judgment := Judgment{
		HeadingDiversity: HeadingDiversity{
			Mine:       DiversityVerdict{ScoreAdjustment: 7},
			Competitor: DiversityVerdict{ScoreAdjustment: -9},
		},
	}
	payload, _ := json.Marshal(judgment)

	c := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		modelReply(t, w, string(payload))
	})

	got, err := c.Compare(context.Background(), Request{Slug: "arsenal"})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if got.HeadingDiversity.Mine.ScoreAdjustment != 2 {
		t.Errorf("mine adjustment = %d, want clamped 2", got.HeadingDiversity.Mine.ScoreAdjustment)
	}
	if got.HeadingDiversity.Competitor.ScoreAdjustment != -2 {
		t.Errorf("competitor adjustment = %d, want clamped -2", got.HeadingDiversity.Competitor.ScoreAdjustment)
	}
}

func TestCompareAPIFailure(t *testing.T) {
	c := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})
	if _, err := c.Compare(context.Background(), Request{Slug: "arsenal"}); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestCompareMalformedJudgment(t *testing.T) {
	c := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		modelReply(t, w, "I cannot produce JSON today, sorry.")
	})
	if _, err := c.Compare(context.Background(), Request{Slug: "arsenal"}); err == nil {
		t.Fatal("expected error on non-JSON judgment")
	}
}

func TestSummarizeDiff(t *testing.T) {
	c := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		modelReply(t, w, "  They added a hospitality section targeting premium buyers.  ")
	})
	got := c.SummarizeDiff(context.Background(), DiffSummaryRequest{
		PageURL: "https://competitor.example/arsenal-tickets",
		Slug:    "arsenal",
	})
	if got != "They added a hospitality section targeting premium buyers." {
		t.Errorf("summary = %q", got)
	}
}

func TestSummarizeDiffFallback(t *testing.T) {
	c := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	got := c.SummarizeDiff(context.Background(), DiffSummaryRequest{Slug: "arsenal"})
	if !strings.HasPrefix(got, "[AI summary unavailable:") {
		t.Errorf("summary = %q, want unavailable marker", got)
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, tc := range cases {
		if got := stripFences(tc.in); got != tc.want {
			t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestVerbatimQuote(t *testing.T) {
	text := "Order now with secure checkout and instant e-tickets."

	if got := verbatimQuote("secure checkout", text); got != "secure checkout" {
		t.Errorf("verbatim quote rejected: %q", got)
	}
	if got := verbatimQuote("SECURE CHECKOUT", text); got != "SECURE CHECKOUT" {
		t.Errorf("case-insensitive quote rejected: %q", got)
	}
	if got := verbatimQuote("free shipping", text); got != "" {
		t.Errorf("fabricated quote kept: %q", got)
	}
	if got := verbatimQuote("", text); got != "" {
		t.Errorf("empty quote became %q", got)
	}

	long := strings.Repeat("secure checkout and instant e-tickets ", 5)
	if got := verbatimQuote(long, text); got != "" {
		t.Errorf("overlong fabricated quote kept: %q", got)
	}

	// Truncating an overlong quote must not split a multi-byte rune.
	run := strings.Repeat("a", 99)
	if got := verbatimQuote(run+"é extra", run+"é more text"); got != run {
		t.Errorf("truncated quote = %q, want %q", got, run)
	}
	if got := verbatimQuote(run+"é", run+"é"); !utf8.ValidString(got) {
		t.Errorf("truncated quote is invalid UTF-8: %q", got)
	}
}

func TestQuestionsFor(t *testing.T) {
	team := QuestionsFor("arsenal")
	if len(team) != 7 {
		t.Errorf("team questions = %d, want 7", len(team))
	}
	comp := QuestionsFor("champions-league")
	if len(comp) != 6 {
		t.Errorf("competition questions = %d, want 6", len(comp))
	}
	if team[0] == comp[0] {
		t.Error("team and competition question sets should differ")
	}
}
