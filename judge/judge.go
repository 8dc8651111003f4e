package judge

import "context"

// Request carries everything the judge needs to compare one topic pair.
// Texts are the extracted body text of each page; H2 lists come from the
// heading scorer so the judge sees the same headings the base score used.
type Request struct {
	Slug           string
	MyURL          string
	MyText         string
	MyH2s          []string
	CompetitorURL  string
	CompetitorText string
	CompetitorH2s  []string
}

// DiversityVerdict is the per-side heading diversity adjustment.
// ScoreAdjustment is +2, 0 or -2 and is applied on top of the measured
// heading base score.
type DiversityVerdict struct {
	ScoreAdjustment int    `json:"score_adjustment"`
	Verdict         string `json:"verdict"`
}

type HeadingDiversity struct {
	Mine       DiversityVerdict `json:"mine"`
	Competitor DiversityVerdict `json:"competitor"`
}

// Answer records whether one buyer question is answered by a page, with a
// short verbatim quote when it is.
type Answer struct {
	Answered bool   `json:"answered"`
	Quote    string `json:"quote"`
}

type SideCoverage struct {
	Answers map[string]Answer `json:"answers"`
	Score   int               `json:"score"`
}

type QuestionCoverage struct {
	Mine       SideCoverage `json:"mine"`
	Competitor SideCoverage `json:"competitor"`
}

// Element is one transactional building block (CTA, price range, delivery
// method, booking process). Each found element is worth 2.5 points.
type Element struct {
	Found bool   `json:"found"`
	Quote string `json:"quote"`
}

type SideClarity struct {
	CTA            Element `json:"cta"`
	PriceRange     Element `json:"price_range"`
	DeliveryMethod Element `json:"delivery_method"`
	BookingProcess Element `json:"booking_process"`
	Score          int     `json:"score"`
}

type TransactionalClarity struct {
	Mine       SideClarity `json:"mine"`
	Competitor SideClarity `json:"competitor"`
}

// Judgment is the full structured verdict for one topic pair. Every quote
// inside it must be literally present in the page text it cites.
type Judgment struct {
	HeadingDiversity     HeadingDiversity     `json:"heading_diversity"`
	QuestionCoverage     QuestionCoverage     `json:"question_coverage"`
	TransactionalClarity TransactionalClarity `json:"transactional_clarity"`
	ContentGaps          string               `json:"content_gaps"`
	KeywordsTheyCover    []string             `json:"keywords_they_cover"`
	Recommendations      string               `json:"recommendations"`
}

// Judge produces quote-grounded judgments for the dimensions that cannot be
// measured by local text rules. Implementations make at most one attempt;
// any error means the caller falls back to scoring those dimensions as
// unavailable.
type Judge interface {
	Compare(ctx context.Context, req Request) (*Judgment, error)
}

// Slugs that are competitions rather than team pages. They get a different
// question set for coverage scoring.
var competitionSlugs = map[string]struct{}{
	"fa-cup":           {},
	"world-cup":        {},
	"champions-league": {},
	"europa-league":    {},
	"euro":             {},
}

var teamQuestions = []string{
	"Where is the stadium and how do I get there?",
	"How much do tickets cost?",
	"How do I actually buy tickets?",
	"When are the next fixtures?",
	"Are there hospitality or premium options?",
	"What should I know as a visitor or away fan?",
	"Is this site trustworthy?",
}

var competitionQuestions = []string{
	"What rounds or stages are available?",
	"Which teams are involved?",
	"When are the matches?",
	"Where are the venues?",
	"How do I buy?",
	"What is the price range?",
}

// QuestionsFor returns the fixed buyer question set for a topic slug.
func QuestionsFor(slug string) []string {
	if _, ok := competitionSlugs[slug]; ok {
		return competitionQuestions
	}
	return teamQuestions
}
