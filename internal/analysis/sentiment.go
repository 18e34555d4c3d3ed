// Package analysis is the fixed-lexicon review analysis engine. Every
// function here is pure and deterministic.
package analysis

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/review-insights/review-insights-bot/internal/models"
)

const labelThreshold = 0.1

var positiveWords = toSet(
	"good", "great", "excellent", "amazing", "awesome", "fantastic", "wonderful",
	"love", "loved", "lovely", "best", "perfect", "friendly", "helpful", "nice",
	"delicious", "clean", "fast", "quick", "recommend", "recommended", "happy",
	"pleasant", "professional", "outstanding", "superb", "beautiful", "comfortable",
	"fresh", "polite", "enjoyed", "impressed", "reliable", "worth", "brilliant",
)

var negativeWords = toSet(
	"bad", "terrible", "awful", "horrible", "worst", "hate", "hated", "poor",
	"broken", "rude", "dirty", "slow", "disappointing", "disappointed", "cold",
	"overpriced", "expensive", "unfriendly", "unprofessional", "disgusting",
	"mediocre", "bland", "noisy", "late", "wrong", "damaged", "defective",
	"useless", "waste", "refund", "angry", "annoying", "problem", "issue",
)

// Whole-text negation. Any marker flips polarity for the entire text.
var negationPattern = regexp.MustCompile(`\b(not|no|never|neither|nor)\b|n't`)

// AnalyzeSentiment scores one text
func AnalyzeSentiment(text string) models.SentimentResult {
	lower := strings.ToLower(text)
	tokens := strings.Fields(lower)
	if len(tokens) == 0 {
		return neutralResult()
	}

	positive, negative := 0, 0
	for _, token := range tokens {
		word := strings.TrimFunc(token, isPunct)
		if positiveWords[word] {
			positive++
		}
		if negativeWords[word] {
			negative++
		}
	}

	if negationPattern.MatchString(lower) {
		positive, negative = negative, positive
	}

	words := float64(len(tokens))
	score := clamp(float64(positive-negative)/words, -1, 1)
	magnitude := clamp(float64(positive+negative)/words, 0, 1)

	bonus := 0.0
	if len(tokens) > 20 {
		bonus = 0.2
	}

	return models.SentimentResult{
		Score:      score,
		Magnitude:  magnitude,
		Label:      labelFor(score, magnitude),
		Confidence: min(magnitude*2+bonus, 1),
	}
}

// labelFor applies the polarity thresholds shared by every aggregate
func labelFor(score, magnitude float64) string {
	switch {
	case score > labelThreshold:
		return models.LabelPositive
	case score < -labelThreshold:
		return models.LabelNegative
	case magnitude > labelThreshold:
		return models.LabelMixed
	default:
		return models.LabelNeutral
	}
}

// aggregateResult re-derives label and confidence from averaged values
func aggregateResult(score, magnitude float64) models.SentimentResult {
	score = clamp(score, -1, 1)
	magnitude = clamp(magnitude, 0, 1)
	return models.SentimentResult{
		Score:      score,
		Magnitude:  magnitude,
		Label:      labelFor(score, magnitude),
		Confidence: min(magnitude*2, 1),
	}
}

func neutralResult() models.SentimentResult {
	return models.SentimentResult{Label: models.LabelNeutral}
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
