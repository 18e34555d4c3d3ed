package analysis

import (
	"regexp"
	"strings"

	"github.com/review-insights/review-insights-bot/internal/models"
)

const (
	complaintConfidence = 0.7
	escalationScore     = -0.5
)

type complaintRule struct {
	pattern  *regexp.Regexp
	category string
	severity string
}

// Every rule is evaluated in order; the last match decides category and
// severity. Reordering changes results.
var complaintRules = []complaintRule{
	{regexp.MustCompile(`\b(terrible|horrible|awful|worst|never again|disappointed|disappointing)\b`), "general", models.SeverityMedium},
	{regexp.MustCompile(`\b(rude|unprofessional|unfriendly|ignored|unhelpful|disrespectful)\b`), "service", models.SeverityMedium},
	{regexp.MustCompile(`\b(slow|waited|waiting|took forever|delayed|late)\b`), "speed", models.SeverityLow},
	{regexp.MustCompile(`\b(overpriced|too expensive|rip-?off|overcharged|hidden fees?)\b`), "price", models.SeverityMedium},
	{regexp.MustCompile(`\b(dirty|filthy|unclean|smelly|cockroach(es)?|bugs)\b`), "cleanliness", models.SeverityHigh},
	{regexp.MustCompile(`\b(broken|defective|damaged|poor quality|fell apart|stopped working)\b`), "quality", models.SeverityHigh},
	{regexp.MustCompile(`\b(refund|charged twice|scam|fraud|money back)\b`), "billing", models.SeverityHigh},
	{regexp.MustCompile(`\b(food poisoning|unsafe|injured|dangerous|allergic reaction)\b`), "safety", models.SeverityHigh},
}

var suggestedActions = map[string]string{
	"general":     "Reach out to the customer to understand their experience and offer a resolution",
	"service":     "Review staff conduct with the team and schedule customer service training",
	"speed":       "Audit wait times and staffing levels during peak hours",
	"price":       "Review pricing transparency and communicate the value offered",
	"cleanliness": "Schedule an immediate cleaning inspection and review hygiene procedures",
	"quality":     "Inspect product quality control and offer a replacement or repair",
	"billing":     "Investigate the transaction and contact the customer about a refund",
	"safety":      "Escalate to management immediately and investigate the safety incident",
}

const defaultAction = "Review the feedback and follow up with the customer"

// DetectComplaint flags complaint-like text
func DetectComplaint(text string) models.ComplaintDetection {
	return detectComplaint(text, AnalyzeSentiment(text))
}

func detectComplaint(text string, sentiment models.SentimentResult) models.ComplaintDetection {
	result := models.ComplaintDetection{
		Severity: models.SeverityLow,
		Category: "general",
		Keywords: []string{},
	}

	lower := strings.ToLower(text)
	seen := make(map[string]bool)

	for _, rule := range complaintRules {
		matches := rule.pattern.FindAllString(lower, -1)
		if len(matches) == 0 {
			continue
		}
		result.IsComplaint = true
		result.Category = rule.category
		result.Severity = rule.severity
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				result.Keywords = append(result.Keywords, m)
			}
		}
	}

	if sentiment.Label == models.LabelNegative && sentiment.Confidence > complaintConfidence {
		result.IsComplaint = true
		// Escalation overrides whatever severity the rules produced.
		if sentiment.Score < escalationScore {
			result.Severity = models.SeverityHigh
		}
	}

	if result.IsComplaint {
		result.SuggestedAction = suggestedAction(result.Category)
	}

	return result
}

func suggestedAction(category string) string {
	if action, ok := suggestedActions[category]; ok {
		return action
	}
	return defaultAction
}
