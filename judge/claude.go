package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

const (
	defaultEndpoint = "https://api.anthropic.com/v1/messages"
	defaultModel    = "claude-sonnet-4-6"
	apiVersion      = "2023-06-01"

	maxTextChars  = 12000
	maxPromptText = 5000
	maxQuoteChars = 100
)

// ErrNoAPIKey is returned by NewClaude when ANTHROPIC_API_KEY is not set.
// Callers treat it like any other judge failure and fall back to the
// deterministic-only report.
var ErrNoAPIKey = errors.New("ANTHROPIC_API_KEY is not set")

// chatMessage is a single message in the messages API payload.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatResponse struct {
	Content []contentBlock `json:"content"`
}

// Claude is the production Judge backed by the Anthropic messages API.
// One HTTP attempt per comparison; no retries at this layer.
type Claude struct {
	client   *http.Client
	endpoint string
	model    string
	apiKey   string
}

// NewClaude builds a Claude judge from the environment.
func NewClaude() (*Claude, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	endpoint := os.Getenv("ANTHROPIC_API_URL")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	model := os.Getenv("ANTHROPIC_MODEL")
	if model == "" {
		model = defaultModel
	}
	return &Claude{
		client:   &http.Client{Timeout: 120 * time.Second},
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
	}, nil
}

func truncate(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + fmt.Sprintf("\n\n[... truncated at %d chars ...]", maxChars)
}

// fenceOpenRe and fenceCloseRe strip markdown code fences the model
// sometimes adds despite instructions.
var (
	fenceOpenRe  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceCloseRe = regexp.MustCompile("\\s*```$")
)

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = fenceOpenRe.ReplaceAllString(raw, "")
	raw = fenceCloseRe.ReplaceAllString(raw, "")
	return raw
}

// complete sends one prompt and returns the text of the first content block.
func (c *Claude) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request to model API failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("model API returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode model API response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", errors.New("model API returned empty content")
	}
	return parsed.Content[0].Text, nil
}

// Compare runs the single judgment call covering heading diversity,
// question coverage and transactional clarity, plus the free-text fields.
func (c *Claude) Compare(ctx context.Context, req Request) (*Judgment, error) {
	prompt := buildComparePrompt(req)

	raw, err := c.complete(ctx, prompt, 2500)
	if err != nil {
		return nil, err
	}

	var j Judgment
	if err := json.Unmarshal([]byte(stripFences(raw)), &j); err != nil {
		log.Error("judge returned invalid JSON", "slug", req.Slug, "error", err)
		return nil, fmt.Errorf("invalid judgment JSON for %s: %w", req.Slug, err)
	}

	sanitizeJudgment(&j, req)
	return &j, nil
}

func buildComparePrompt(req Request) string {
	questions := QuestionsFor(req.Slug)
	questionsJSON, _ := json.Marshal(questions)
	myH2sJSON, _ := json.Marshal(req.MyH2s)
	compH2sJSON, _ := json.Marshal(req.CompetitorH2s)

	var b strings.Builder
	fmt.Fprintf(&b, `You are a content analyst for a football ticket marketplace.
Analyze two pages for the topic "%s".

=== MY PAGE (%s) ===
H2 headings: %s
Content:
%s

=== COMPETITOR PAGE (%s) ===
H2 headings: %s
Content:
%s

Respond with ONLY valid JSON — no markdown fences, no explanation. Use this exact structure:

`, req.Slug, req.MyURL, myH2sJSON, truncate(req.MyText, maxPromptText),
		req.CompetitorURL, compH2sJSON, truncate(req.CompetitorText, maxPromptText))

	b.WriteString(`{
  "heading_diversity": {
    "mine": {
      "score_adjustment": 0,
      "verdict": "One sentence: do the H2s cover meaningfully different subtopics, or are they repetitive?"
    },
    "competitor": {
      "score_adjustment": 0,
      "verdict": "One sentence verdict."
    }
  },
  "question_coverage": {
    "mine": {
      "answers": {
        "QUESTION_TEXT": {"answered": true, "quote": "exact short quote from MY PAGE or null"}
      },
      "score": 0
    },
    "competitor": {
      "answers": {
        "QUESTION_TEXT": {"answered": true, "quote": "exact short quote from COMPETITOR or null"}
      },
      "score": 0
    }
  },
  "transactional_clarity": {
    "mine": {
      "cta":             {"found": false, "quote": null},
      "price_range":     {"found": false, "quote": null},
      "delivery_method": {"found": false, "quote": null},
      "booking_process": {"found": false, "quote": null},
      "score": 0
    },
    "competitor": {
      "cta":             {"found": false, "quote": null},
      "price_range":     {"found": false, "quote": null},
      "delivery_method": {"found": false, "quote": null},
      "booking_process": {"found": false, "quote": null},
      "score": 0
    }
  },
  "content_gaps": "Specific topics/sections competitor covers that my page does not.",
  "keywords_they_cover": ["keyword1", "keyword2"],
  "recommendations": "3-5 concrete, actionable improvements for my page."
}

`)

	fmt.Fprintf(&b, `Rules — read carefully:
- Replace every QUESTION_TEXT key with the actual question from this list: %s
- heading_diversity.score_adjustment: +2 if H2s cover distinctly varied subtopics, 0 if adequate, -2 if repetitive
- question_coverage score = round((answered_count / %d) * 10)
- transactional_clarity score = each of 4 elements found adds 2.5 points (max 10)
- For "quote": copy the EXACT text from the page (max %d chars). Use null if not found.
- NEVER invent quotes. Only quote text that is literally present in the page content above.`,
		questionsJSON, len(questions), maxQuoteChars)

	return b.String()
}

// sanitizeJudgment enforces the judgment contract: adjustments stay within
// [-2, 2] and every quote must be a verbatim (case-insensitive) substring
// of the side's own text. Fabricated quotes are dropped rather than
// failing the whole judgment.
func sanitizeJudgment(j *Judgment, req Request) {
	j.HeadingDiversity.Mine.ScoreAdjustment = clampAdjustment(j.HeadingDiversity.Mine.ScoreAdjustment)
	j.HeadingDiversity.Competitor.ScoreAdjustment = clampAdjustment(j.HeadingDiversity.Competitor.ScoreAdjustment)

	sanitizeCoverage(&j.QuestionCoverage.Mine, req.MyText)
	sanitizeCoverage(&j.QuestionCoverage.Competitor, req.CompetitorText)

	sanitizeClarity(&j.TransactionalClarity.Mine, req.MyText)
	sanitizeClarity(&j.TransactionalClarity.Competitor, req.CompetitorText)
}

func clampAdjustment(adj int) int {
	if adj > 2 {
		return 2
	}
	if adj < -2 {
		return -2
	}
	return adj
}

func sanitizeCoverage(side *SideCoverage, text string) {
	for q, a := range side.Answers {
		a.Quote = verbatimQuote(a.Quote, text)
		side.Answers[q] = a
	}
}

func sanitizeClarity(side *SideClarity, text string) {
	side.CTA.Quote = verbatimQuote(side.CTA.Quote, text)
	side.PriceRange.Quote = verbatimQuote(side.PriceRange.Quote, text)
	side.DeliveryMethod.Quote = verbatimQuote(side.DeliveryMethod.Quote, text)
	side.BookingProcess.Quote = verbatimQuote(side.BookingProcess.Quote, text)
}

func verbatimQuote(quote, text string) string {
	if quote == "" {
		return ""
	}
	if len(quote) > maxQuoteChars {
		cut := maxQuoteChars
		for cut > 0 && !utf8.RuneStart(quote[cut]) {
			cut--
		}
		quote = quote[:cut]
	}
	if !strings.Contains(strings.ToLower(text), strings.ToLower(quote)) {
		return ""
	}
	return quote
}

// DiffSummaryRequest carries one detected change for narrative analysis.
type DiffSummaryRequest struct {
	PageURL     string
	Slug        string
	OldText     string
	NewText     string
	AddedText   string
	RemovedText string
	ChangePct   float64
}

// SummarizeDiff asks the model what changed on a page and why it matters.
// On failure it returns a bracketed unavailable marker instead of an error
// so diff persistence never blocks on the model.
func (c *Claude) SummarizeDiff(ctx context.Context, req DiffSummaryRequest) string {
	prompt := fmt.Sprintf(`You are a competitive intelligence analyst for a football ticket marketplace.

A competitor page has changed significantly.

Page: %s (slug: %s)
Change level: %.1f%% of content changed

--- CONTENT ADDED ---
%s

--- CONTENT REMOVED ---
%s

--- OLD FULL TEXT (truncated) ---
%s

--- NEW FULL TEXT (truncated) ---
%s

Please provide a concise analysis (2-4 sentences) covering:
1. What specifically changed (new sections, removed info, updated facts)
2. Any new topics, keywords, or angles the competitor has added
3. Your assessment of the strategic intent — are they targeting new keywords,
   improving trust signals, adding urgency, etc.?

Be direct and specific. Focus on what matters for a competing ticket marketplace.`,
		req.PageURL, req.Slug, req.ChangePct,
		truncate(req.AddedText, 4000), truncate(req.RemovedText, 4000),
		truncate(req.OldText, 3000), truncate(req.NewText, 3000))

	summary, err := c.complete(ctx, prompt, 400)
	if err != nil {
		log.Error("diff summary failed", "slug", req.Slug, "error", err)
		return fmt.Sprintf("[AI summary unavailable: %v]", err)
	}
	return strings.TrimSpace(summary)
}
