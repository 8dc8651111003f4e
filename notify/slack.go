// Package notify delivers Slack alerts for significant page changes and
// the end-of-run comparison summary.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/competitor-monitor/backend/compare"
	"github.com/competitor-monitor/backend/store"
)

// Slack posts block-kit messages to an incoming webhook. A missing
// webhook URL disables delivery without failing the pipeline.
type Slack struct {
	webhookURL string
	client     *http.Client
}

// NewSlack reads SLACK_WEBHOOK_URL from the environment.
func NewSlack() *Slack {
	return &Slack{
		webhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

// ChangeAlert describes one significant detected change.
type ChangeAlert struct {
	PageURL      string
	Slug         string
	Site         string
	ChangePct    float64
	OldWordCount int
	NewWordCount int
	AISummary    string
}

// SendChangeAlert posts a change notification. Returns false when the
// webhook is unset or delivery fails.
func (s *Slack) SendChangeAlert(alert ChangeAlert) bool {
	if s.webhookURL == "" {
		log.Warn("SLACK_WEBHOOK_URL not set, skipping change alert", "slug", alert.Slug)
		return false
	}

	emoji, siteLabel := "🟡", "Our"
	if alert.Site == store.SiteCompetitor {
		emoji, siteLabel = "🔴", "Competitor"
	}
	delta := alert.NewWordCount - alert.OldWordCount
	deltaStr := fmt.Sprintf("%d", delta)
	if delta >= 0 {
		deltaStr = "+" + deltaStr
	}

	msg := slackMessage{
		Text: fmt.Sprintf("%s *Content Change Detected* — %s Page", emoji, siteLabel),
		Blocks: []slackBlock{
			{
				Type: "header",
				Text: &slackText{
					Type:  "plain_text",
					Text:  fmt.Sprintf("%s Content Change: %s", emoji, titleFromSlug(alert.Slug)),
					Emoji: true,
				},
			},
			{
				Type: "section",
				Fields: []slackText{
					{Type: "mrkdwn", Text: fmt.Sprintf("*Page:*\n<%s|%s>", alert.PageURL, alert.Slug)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Site:*\n%s", siteLabel)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Change:*\n%.1f%%", alert.ChangePct)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Word count:*\n%d → %d (%s)",
						alert.OldWordCount, alert.NewWordCount, deltaStr)},
				},
			},
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: "*AI Summary:*\n" + alert.AISummary},
			},
			{
				Type: "context",
				Elements: []slackText{
					{Type: "mrkdwn", Text: fmt.Sprintf("Detected at %s | Competitor Monitor",
						time.Now().UTC().Format("2006-01-02 15:04 UTC"))},
				},
			},
		},
	}

	if err := s.post(msg); err != nil {
		log.Error("failed to send change alert", "slug", alert.Slug, "error", err)
		return false
	}
	log.Info("slack alert sent", "slug", alert.Slug, "change_pct", fmt.Sprintf("%.1f", alert.ChangePct))
	return true
}

// SendComparisonSummary posts the daily comparison roll-up.
func (s *Slack) SendComparisonSummary(reports []*compare.ComparisonReport, wordCounts map[string][2]int) bool {
	if s.webhookURL == "" {
		log.Warn("SLACK_WEBHOOK_URL not set, skipping comparison summary")
		return false
	}
	if len(reports) == 0 {
		return false
	}

	lines := []string{"*📊 Daily Competitor Comparison Summary*\n"}
	for _, r := range reports {
		indicator := "⚠️"
		if r.MyDepthScore >= r.CompetitorDepthScore {
			indicator = "✅"
		}
		wc := wordCounts[r.Slug]
		lines = append(lines, fmt.Sprintf(
			"%s *%s* — My score: %d/10 (%dw) | Competitor: %d/10 (%dw)",
			indicator, titleFromSlug(r.Slug),
			r.MyDepthScore, wc[0], r.CompetitorDepthScore, wc[1]))
	}

	body := strings.Join(lines, "\n")
	msg := slackMessage{
		Text: body,
		Blocks: []slackBlock{
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: body}},
		},
	}
	if err := s.post(msg); err != nil {
		log.Error("failed to send comparison summary", "error", err)
		return false
	}
	return true
}

func (s *Slack) post(msg slackMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("can't encode slack message: %w", err)
	}
	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}

func titleFromSlug(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
