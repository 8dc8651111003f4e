package compare

// Heading levels as stored by the extractor.
const (
	LevelH1 = "h1"
	LevelH2 = "h2"
	LevelH3 = "h3"
	LevelH4 = "h4"
)

// Heading is one document heading in source order.
type Heading struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// PageSignals is the immutable extracted view of one page at one point in
// time. It is everything the deterministic scorers and the judge see.
type PageSignals struct {
	URL           string    `json:"url"`
	Text          string    `json:"text"`
	Headings      []Heading `json:"headings"`
	WordCount     int       `json:"word_count"`
	InternalLinks []string  `json:"internal_links"`
}

// DimensionResult is one scored axis of the side-by-side comparison.
// Gap is competitor minus mine: positive means the competitor is ahead.
type DimensionResult struct {
	Dimension          string `json:"dimension"`
	ScoreMine          int    `json:"score_mine"`
	ScoreCompetitor    int    `json:"score_competitor"`
	Gap                int    `json:"gap"`
	MyEvidence         string `json:"my_evidence"`
	CompetitorEvidence string `json:"competitor_evidence"`
	Recommendation     string `json:"recommendation"`
}

// ComparisonReport is the full output of one comparison run. It is built
// once and never mutated afterward.
type ComparisonReport struct {
	Slug          string `json:"slug"`
	MyURL         string `json:"my_url"`
	CompetitorURL string `json:"competitor_url"`

	Dimensions []DimensionResult `json:"dimensions"`

	// Rounded integer scores kept for older report consumers.
	MyDepthScore         int `json:"my_depth_score"`
	CompetitorDepthScore int `json:"competitor_depth_score"`

	MyWeightedScore         float64 `json:"my_depth_score_weighted"`
	CompetitorWeightedScore float64 `json:"competitor_depth_score_weighted"`

	MyDimensionScores         map[string]int `json:"my_dimension_scores"`
	CompetitorDimensionScores map[string]int `json:"competitor_dimension_scores"`

	ContentGaps       string   `json:"content_gaps"`
	KeywordsTheyCover []string `json:"keywords_they_cover"`
	Recommendations   string   `json:"recommendations"`
}

// Dimension keys for the per-side score maps.
const (
	DimWordCount            = "word_count"
	DimHeadingStructure     = "heading_structure"
	DimQuestionCoverage     = "question_coverage"
	DimTrustSignals         = "trust_signals"
	DimTransactionalClarity = "transactional_clarity"
	DimFreshness            = "freshness"
	DimFAQCoverage          = "faq_coverage"
	DimInternalLinking      = "internal_linking"
)

// Weights is the fixed dimension weight table for the overall depth score.
// The weights sum to 1.0; weightedScore fails fast if a dimension key is
// missing from the score map, since that is a wiring bug.
var Weights = map[string]float64{
	DimQuestionCoverage:     0.25,
	DimFAQCoverage:          0.20,
	DimHeadingStructure:     0.15,
	DimWordCount:            0.15,
	DimTransactionalClarity: 0.10,
	DimTrustSignals:         0.05,
	DimFreshness:            0.05,
	DimInternalLinking:      0.05,
}
