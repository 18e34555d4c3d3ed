package analysis

import (
	"regexp"
	"strings"

	"github.com/review-insights/review-insights-bot/internal/models"
)

const maxFeatureLength = 200

// Checked in order; the first match selects the sentence.
var requestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`would be (nice|great|good|helpful|better) if`),
	regexp.MustCompile(`wish (it|they|you|there) (had|has|was|were|would|could|offered)`),
	regexp.MustCompile(`please (add|include|bring|consider|offer)`),
	regexp.MustCompile(`should (have|add|include|offer|consider)`),
	regexp.MustCompile(`would love (to see|if|a|an|more)`),
	regexp.MustCompile(`(hope|hoping) (they|you) (add|bring|get|offer)`),
	regexp.MustCompile(`(needs|could use) (a|an|more|better|some)\b`),
	regexp.MustCompile(`it would be (nice|great|good) to`),
}

var (
	highPriorityTerms   = []string{"essential", "critical", "must have", "need"}
	mediumPriorityTerms = []string{"would be nice", "should", "could"}
	sentenceBoundary    = regexp.MustCompile(`[.!?]`)
)

// DetectFeatureRequest looks for request intent and extracts the sentence
// carrying it. Frequency is always 1 here; aggregation sums it.
func DetectFeatureRequest(text string) models.FeatureRequest {
	lower := strings.ToLower(text)

	for _, pattern := range requestPatterns {
		loc := pattern.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		source := text
		if len(lower) != len(text) {
			source = lower
		}
		return models.FeatureRequest{
			IsFeatureRequest: true,
			Feature:          excerpt(sentenceAt(source, loc[0]), maxFeatureLength),
			Priority:         requestPriority(lower),
			Frequency:        1,
		}
	}

	return models.FeatureRequest{Priority: models.SeverityLow}
}

// sentenceAt returns the sentence of text containing byte offset pos
func sentenceAt(text string, pos int) string {
	start := 0
	for _, b := range sentenceBoundary.FindAllStringIndex(text, -1) {
		if b[0] >= pos {
			return strings.TrimSpace(text[start:b[0]])
		}
		start = b[1]
	}
	return strings.TrimSpace(text[start:])
}

func requestPriority(lower string) string {
	if containsAny(lower, highPriorityTerms) {
		return models.SeverityHigh
	}
	if containsAny(lower, mediumPriorityTerms) {
		return models.SeverityMedium
	}
	return models.SeverityLow
}
