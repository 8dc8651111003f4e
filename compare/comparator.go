package compare

import (
	"context"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/competitor-monitor/backend/judge"
)

// Unavailable markers surfaced in the report when the judge cannot run.
// The deterministic dimensions still produce a complete report around them.
const (
	unavailableVerdict         = "AI analysis unavailable"
	unavailableGaps            = "[AI analysis unavailable — check ANTHROPIC_API_KEY and credits]"
	unavailableRecommendations = "[AI analysis unavailable]"
)

// ComparePages runs the evidence-based depth comparison across all eight
// dimensions for one topic pair. j may be nil; a nil judge or any judge
// error degrades the judged dimensions to their documented fallbacks and
// never fails the comparison. Inputs are not mutated.
func ComparePages(ctx context.Context, j judge.Judge, slug string, mine, competitor PageSignals) *ComparisonReport {
	questions := judge.QuestionsFor(slug)

	// Measured dimensions.
	wcMine := scoreWordCount(mine.WordCount)
	wcComp := scoreWordCount(competitor.WordCount)

	headMine := scoreHeadings(mine.Headings)
	headComp := scoreHeadings(competitor.Headings)

	trustMine := scoreTrustSignals(mine.Text)
	trustComp := scoreTrustSignals(competitor.Text)

	freshMine := scoreFreshness(mine.Text)
	freshComp := scoreFreshness(competitor.Text)

	faqMine := scoreFAQ(mine.Text, mine.Headings)
	faqComp := scoreFAQ(competitor.Text, competitor.Headings)

	linksMine := scoreInternalLinks(mine.InternalLinks)
	linksComp := scoreInternalLinks(competitor.InternalLinks)

	// Judged dimensions: one attempt, failure means unavailable.
	var judgment *judge.Judgment
	if j != nil {
		var err error
		judgment, err = j.Compare(ctx, judge.Request{
			Slug:           slug,
			MyURL:          mine.URL,
			MyText:         mine.Text,
			MyH2s:          headMine.H2Texts,
			CompetitorURL:  competitor.URL,
			CompetitorText: competitor.Text,
			CompetitorH2s:  headComp.H2Texts,
		})
		if err != nil {
			log.Warn("judge unavailable, judged dimensions score zero", "slug", slug, "error", err)
			judgment = nil
		}
	}

	// Heading structure: base ± diversity adjustment, clamped to [1,10].
	// When the judge is unavailable the base score stands on its own.
	myAdj, compAdj := 0, 0
	myVerdict, compVerdict := unavailableVerdict, unavailableVerdict
	if judgment != nil {
		myAdj = judgment.HeadingDiversity.Mine.ScoreAdjustment
		compAdj = judgment.HeadingDiversity.Competitor.ScoreAdjustment
		myVerdict = judgment.HeadingDiversity.Mine.Verdict
		compVerdict = judgment.HeadingDiversity.Competitor.Verdict
	}
	headScoreMine := clamp(headMine.BaseScore+myAdj, 1, 10)
	headScoreComp := clamp(headComp.BaseScore+compAdj, 1, 10)

	// Question coverage and transactional clarity zero out when unavailable.
	var (
		qcScoreMine, qcScoreComp int
		qcAnswersMine            map[string]judge.Answer
		qcAnswersComp            map[string]judge.Answer
		tcScoreMine, tcScoreComp int
		tcMine, tcComp           *judge.SideClarity
		contentGaps              = unavailableGaps
		keywords                 []string
		recommendations          = unavailableRecommendations
	)
	if judgment != nil {
		qcScoreMine = clamp(judgment.QuestionCoverage.Mine.Score, 0, 10)
		qcScoreComp = clamp(judgment.QuestionCoverage.Competitor.Score, 0, 10)
		qcAnswersMine = judgment.QuestionCoverage.Mine.Answers
		qcAnswersComp = judgment.QuestionCoverage.Competitor.Answers

		tcScoreMine = clamp(judgment.TransactionalClarity.Mine.Score, 0, 10)
		tcScoreComp = clamp(judgment.TransactionalClarity.Competitor.Score, 0, 10)
		tcMine = &judgment.TransactionalClarity.Mine
		tcComp = &judgment.TransactionalClarity.Competitor

		contentGaps = judgment.ContentGaps
		keywords = judgment.KeywordsTheyCover
		recommendations = judgment.Recommendations
	}

	headEvidenceMine := headMine.Evidence
	if myVerdict != "" {
		headEvidenceMine += " — " + myVerdict
	}
	headEvidenceComp := headComp.Evidence
	if compVerdict != "" {
		headEvidenceComp += " — " + compVerdict
	}

	faqEvidenceMine := faqMine.Evidence
	if len(faqMine.QuestionHeadings) > 0 {
		faqEvidenceMine += ": " + joinFirst(faqMine.QuestionHeadings, 3)
	}
	faqEvidenceComp := faqComp.Evidence
	if len(faqComp.QuestionHeadings) > 0 {
		faqEvidenceComp += ": " + joinFirst(faqComp.QuestionHeadings, 3)
	}

	dimensions := []DimensionResult{
		{
			Dimension:          "Word Count Adequacy",
			ScoreMine:          wcMine.Score,
			ScoreCompetitor:    wcComp.Score,
			Gap:                wcComp.Score - wcMine.Score,
			MyEvidence:         wcMine.Evidence,
			CompetitorEvidence: wcComp.Evidence,
			Recommendation:     recoWordCount(mine.WordCount, competitor.WordCount),
		},
		{
			Dimension:          "Heading Structure",
			ScoreMine:          headScoreMine,
			ScoreCompetitor:    headScoreComp,
			Gap:                headScoreComp - headScoreMine,
			MyEvidence:         headEvidenceMine,
			CompetitorEvidence: headEvidenceComp,
			Recommendation:     recoHeadings(headScoreMine, headScoreComp),
		},
		{
			Dimension:          "Question Coverage",
			ScoreMine:          qcScoreMine,
			ScoreCompetitor:    qcScoreComp,
			Gap:                qcScoreComp - qcScoreMine,
			MyEvidence:         formatQuestionAnswers(questions, qcAnswersMine),
			CompetitorEvidence: formatQuestionAnswers(questions, qcAnswersComp),
			Recommendation:     recoQuestions(questions, qcAnswersMine),
		},
		{
			Dimension:          "Trust Signals",
			ScoreMine:          trustMine.Score,
			ScoreCompetitor:    trustComp.Score,
			Gap:                trustComp.Score - trustMine.Score,
			MyEvidence:         formatTrust(trustMine.Found),
			CompetitorEvidence: formatTrust(trustComp.Found),
			Recommendation:     recoTrust(trustMine),
		},
		{
			Dimension:          "Transactional Clarity",
			ScoreMine:          tcScoreMine,
			ScoreCompetitor:    tcScoreComp,
			Gap:                tcScoreComp - tcScoreMine,
			MyEvidence:         formatTransactional(tcMine),
			CompetitorEvidence: formatTransactional(tcComp),
			Recommendation:     recoTransactional(tcMine),
		},
		{
			Dimension:          "Freshness Signals",
			ScoreMine:          freshMine.Score,
			ScoreCompetitor:    freshComp.Score,
			Gap:                freshComp.Score - freshMine.Score,
			MyEvidence:         formatFreshness(freshMine.Signals),
			CompetitorEvidence: formatFreshness(freshComp.Signals),
			Recommendation:     recoFreshness(),
		},
		{
			Dimension:          "FAQ Coverage",
			ScoreMine:          faqMine.Score,
			ScoreCompetitor:    faqComp.Score,
			Gap:                faqComp.Score - faqMine.Score,
			MyEvidence:         faqEvidenceMine,
			CompetitorEvidence: faqEvidenceComp,
			Recommendation:     recoFAQ(slug),
		},
		{
			Dimension:          "Internal Linking",
			ScoreMine:          linksMine.Score,
			ScoreCompetitor:    linksComp.Score,
			Gap:                linksComp.Score - linksMine.Score,
			MyEvidence:         linksMine.Evidence,
			CompetitorEvidence: linksComp.Evidence,
			Recommendation:     recoInternalLinks(linksMine.Count),
		},
	}

	myScores := map[string]int{
		DimWordCount:            wcMine.Score,
		DimHeadingStructure:     headScoreMine,
		DimQuestionCoverage:     qcScoreMine,
		DimTrustSignals:         trustMine.Score,
		DimTransactionalClarity: tcScoreMine,
		DimFreshness:            freshMine.Score,
		DimFAQCoverage:          faqMine.Score,
		DimInternalLinking:      linksMine.Score,
	}
	compScores := map[string]int{
		DimWordCount:            wcComp.Score,
		DimHeadingStructure:     headScoreComp,
		DimQuestionCoverage:     qcScoreComp,
		DimTrustSignals:         trustComp.Score,
		DimTransactionalClarity: tcScoreComp,
		DimFreshness:            freshComp.Score,
		DimFAQCoverage:          faqComp.Score,
		DimInternalLinking:      linksComp.Score,
	}

	myWeighted := WeightedScore(myScores)
	compWeighted := WeightedScore(compScores)

	return &ComparisonReport{
		Slug:                      slug,
		MyURL:                     mine.URL,
		CompetitorURL:             competitor.URL,
		Dimensions:                dimensions,
		MyDepthScore:              int(math.Round(myWeighted)),
		CompetitorDepthScore:      int(math.Round(compWeighted)),
		MyWeightedScore:           myWeighted,
		CompetitorWeightedScore:   compWeighted,
		MyDimensionScores:         myScores,
		CompetitorDimensionScores: compScores,
		ContentGaps:               contentGaps,
		KeywordsTheyCover:         keywords,
		Recommendations:           recommendations,
	}
}

// JudgeUnavailable reports whether the judged dimensions of a report fell
// back to their unavailable markers.
func JudgeUnavailable(r *ComparisonReport) bool {
	return r.ContentGaps == unavailableGaps
}

// WeightedScore computes the overall depth score as the dot product of the
// eight dimension scores with the fixed weight table, rounded to one
// decimal. A missing dimension key is a wiring bug, not a data problem, so
// it panics rather than producing a silently wrong score.
func WeightedScore(scores map[string]int) float64 {
	total := 0.0
	for k, w := range Weights {
		s, ok := scores[k]
		if !ok {
			panic(fmt.Sprintf("compare: score map missing dimension %q", k))
		}
		total += w * float64(s)
	}
	return math.Round(total*10) / 10
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func joinFirst(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
