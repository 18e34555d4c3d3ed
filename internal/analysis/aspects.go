package analysis

import (
	"sort"
	"strings"

	"github.com/review-insights/review-insights-bot/internal/models"
)

const (
	maxAspectExamples = 3
	maxExampleLength  = 100
)

type aspect struct {
	name     string
	keywords []string
}

// Evaluated in this order; ties in the final ranking keep it.
var aspects = []aspect{
	{name: "service", keywords: []string{"service", "staff", "employee", "waiter", "waitress", "server", "support", "manager", "helpful"}},
	{name: "quality", keywords: []string{"quality", "product", "food", "taste", "material", "durable", "fresh", "broken"}},
	{name: "price", keywords: []string{"price", "cost", "expensive", "cheap", "value", "money", "worth", "overpriced", "affordable"}},
	{name: "location", keywords: []string{"location", "parking", "neighborhood", "area", "located", "access"}},
	{name: "atmosphere", keywords: []string{"atmosphere", "ambiance", "ambience", "decor", "music", "vibe", "cozy", "noisy", "clean"}},
	{name: "speed", keywords: []string{"fast", "slow", "quick", "wait", "delivery", "delay", "prompt", "took forever"}},
}

type aspectAccumulator struct {
	scores     []float64
	magnitudes []float64
	examples   []string
}

// ExtractAspects scores every review against the fixed aspect buckets
func ExtractAspects(reviews []models.Review) []models.AspectSentiment {
	sentiments := make([]models.SentimentResult, len(reviews))
	for i, r := range reviews {
		sentiments[i] = AnalyzeSentiment(r.Content)
	}
	return extractAspects(reviews, sentiments)
}

// extractAspects reuses already computed per-review sentiment
func extractAspects(reviews []models.Review, sentiments []models.SentimentResult) []models.AspectSentiment {
	acc := make([]aspectAccumulator, len(aspects))

	for i, review := range reviews {
		content := strings.ToLower(review.Content)
		for a, asp := range aspects {
			if !containsAny(content, asp.keywords) {
				continue
			}
			acc[a].scores = append(acc[a].scores, sentiments[i].Score)
			acc[a].magnitudes = append(acc[a].magnitudes, sentiments[i].Magnitude)
			if len(acc[a].examples) < maxAspectExamples {
				acc[a].examples = append(acc[a].examples, excerpt(review.Content, maxExampleLength))
			}
		}
	}

	result := make([]models.AspectSentiment, 0, len(aspects))
	for a, asp := range aspects {
		mentions := len(acc[a].scores)
		if mentions == 0 {
			continue
		}
		result = append(result, models.AspectSentiment{
			Aspect:    asp.name,
			Sentiment: aggregateResult(mean(acc[a].scores), mean(acc[a].magnitudes)),
			Mentions:  mentions,
			Examples:  acc[a].examples,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Mentions > result[j].Mentions
	})

	return result
}

func containsAny(content string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

// excerpt cuts text to at most n runes
func excerpt(text string, n int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
