package compare

import (
	"fmt"
	"strings"

	"github.com/competitor-monitor/backend/judge"
)

// Recommendation builders. Each is a pure function of the measured or
// judged state for its dimension and always produces a usable string,
// including when the judge was unavailable.

func recoWordCount(myWC, compWC int) string {
	if myWC >= compWC {
		return fmt.Sprintf("Word count (%s) is already competitive.", groupThousands(myWC))
	}
	gap := compWC - myWC
	return fmt.Sprintf("Add ~%s words to match competitor. "+
		"Focus on informational sections: stadium guide, travel, FAQs, history.", groupThousands(gap))
}

func recoHeadings(myScore, compScore int) string {
	if myScore < compScore {
		return "Add more H2s covering distinct subtopics; use H3s for sub-sections."
	}
	return "Heading structure is competitive."
}

func recoQuestions(questions []string, answers map[string]judge.Answer) string {
	if len(answers) == 0 {
		return "Ensure your page answers all key buyer questions."
	}
	var missing []string
	for _, q := range questions {
		if a, ok := answers[q]; ok && !a.Answered {
			missing = append(missing, q)
		}
	}
	if len(missing) == 0 {
		return "All key buyer questions are answered."
	}
	return "Add content answering: " + strings.Join(missing, "; ")
}

func recoTrust(found trustResult) string {
	var missing []string
	for _, cat := range trustCategories {
		if !found.hasCategory(cat.Name) {
			missing = append(missing, cat.Name)
		}
	}
	if len(missing) == 0 {
		return "Trust signals are comprehensive."
	}
	return "Add missing trust signals: " + strings.Join(missing, ", ")
}

func recoTransactional(side *judge.SideClarity) string {
	if side == nil {
		return "Ensure page has clear CTA, price range, delivery info, and booking process."
	}
	var missing []string
	if !side.CTA.Found {
		missing = append(missing, "cta")
	}
	if !side.PriceRange.Found {
		missing = append(missing, "price range")
	}
	if !side.DeliveryMethod.Found {
		missing = append(missing, "delivery method")
	}
	if !side.BookingProcess.Found {
		missing = append(missing, "booking process")
	}
	if len(missing) == 0 {
		return "All transactional elements are present."
	}
	return "Add missing transactional elements: " + strings.Join(missing, ", ")
}

func recoFreshness() string {
	return "Add current season year, upcoming fixture dates, and 'latest/upcoming' language."
}

func recoFAQ(slug string) string {
	questions := judge.QuestionsFor(slug)
	if len(questions) > 5 {
		questions = questions[:5]
	}
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		lines = append(lines, "  - "+q)
	}
	return "Add a FAQ section with at least 5 questions, including:\n" + strings.Join(lines, "\n")
}

func recoInternalLinks(count int) string {
	return fmt.Sprintf("Add more internal links to related pages. "+
		"Currently %d — target 10+ with descriptive anchor text.", count)
}
