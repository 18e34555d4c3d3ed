package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/review-insights/review-insights-bot/internal/config"
	"github.com/review-insights/review-insights-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *models.Report {
	return &models.Report{
		GeneratedAt:  time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Period:       "weekly",
		Business:     "Blue Bottle",
		TotalReviews: 2,
		Insights: &models.BatchAnalysis{
			ReviewCount:      2,
			AverageRating:    3,
			OverallSentiment: models.SentimentResult{Score: 0, Magnitude: 0.5, Label: models.LabelMixed, Confidence: 1},
			AspectSentiments: []models.AspectSentiment{
				{Aspect: "service", Sentiment: models.SentimentResult{Score: 0.5, Label: models.LabelPositive}, Mentions: 1, Examples: []string{"Love the service, amazing!"}},
			},
			Complaints: []models.ComplaintDetection{
				{ReviewID: "r2", IsComplaint: true, Severity: models.SeverityHigh, Category: "quality", Keywords: []string{"terrible", "broken"}, SuggestedAction: "Review quality control"},
			},
			FeatureRequests: []models.FeatureRequest{
				{IsFeatureRequest: true, Feature: "Please add vegan options", Priority: models.SeverityLow, Frequency: 3},
			},
		},
	}
}

func sampleAlert() *models.Alert {
	return &models.Alert{
		ID:       "alert-google/r2",
		Type:     "critical",
		Title:    "High complaint about Blue Bottle on google",
		Message:  "1-star review (quality): Review quality control",
		Business: "Blue Bottle",
		Review:   &models.Review{ID: "r2", Platform: "google", Rating: 1, Content: "Terrible, broken on arrival"},
		Complaint: &models.ComplaintDetection{
			ReviewID: "r2", IsComplaint: true, Severity: models.SeverityHigh, Category: "quality", Keywords: []string{"terrible", "broken"},
		},
	}
}

func teamsServer(t *testing.T, status int, received *[]TeamsMessage) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg TeamsMessage
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg)) {
			*received = append(*received, msg)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSendReport_Teams(t *testing.T) {
	var received []TeamsMessage
	server := teamsServer(t, http.StatusOK, &received)

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})
	require.NoError(t, service.SendReport(sampleReport()))

	require.Len(t, received, 1)
	msg := received[0]
	assert.Equal(t, "MessageCard", msg.Type)
	assert.Equal(t, "Review Insights - Blue Bottle (Weekly)", msg.Title)
	assert.Equal(t, "d13438", msg.ThemeColor)

	var titles []string
	for _, s := range msg.Sections {
		titles = append(titles, s.ActivityTitle)
	}
	assert.Equal(t, []string{"Summary", "Aspects", "Complaints", "Feature Requests"}, titles)
	assert.Contains(t, msg.Sections[2].ActivityText, "**Quality** (high)")
	assert.Contains(t, msg.Sections[3].ActivityText, "Please add vegan options (x3, low priority)")
}

func TestSendAlert_Teams(t *testing.T) {
	var received []TeamsMessage
	server := teamsServer(t, http.StatusOK, &received)

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})
	require.NoError(t, service.SendAlert(sampleAlert()))

	require.Len(t, received, 1)
	msg := received[0]
	assert.Equal(t, "High complaint about Blue Bottle on google", msg.Title)
	require.Len(t, msg.Sections, 1)
	assert.Equal(t, "1 stars by anonymous on google", msg.Sections[0].ActivitySubtitle)
	assert.Contains(t, msg.Sections[0].Facts, TeamsFact{Name: "Keywords", Value: "terrible, broken"})
}

func TestSendReport_TeamsFailure(t *testing.T) {
	var received []TeamsMessage
	server := teamsServer(t, http.StatusInternalServerError, &received)

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})
	err := service.SendReport(sampleReport())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Teams: Teams webhook returned status 500")
}

func TestSendReport_NoChannels(t *testing.T) {
	service := NewService(&config.Config{})
	assert.NoError(t, service.SendReport(sampleReport()))
	assert.NoError(t, service.SendAlert(sampleAlert()))
}

func TestBuildEmailBodies(t *testing.T) {
	report := sampleReport()

	html, err := buildEmailHTML(report)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Blue Bottle</h1>")
	assert.Contains(t, html, "<strong>Average Rating:</strong> 3.00")
	assert.Contains(t, html, `class="item high"`)
	assert.Contains(t, html, "Please add vegan options")

	text := buildEmailText(report)
	assert.Contains(t, text, "Review Insights - Blue Bottle - Weekly")
	assert.Contains(t, text, "Overall Sentiment: mixed (+0.00, confidence 100%)")
	assert.Contains(t, text, "Service: positive")
	assert.Contains(t, text, "1. Quality (high): Review quality control")

	alertText := buildAlertText(sampleAlert())
	assert.Contains(t, alertText, "Keywords: terrible, broken")
	assert.Contains(t, alertText, "Terrible, broken on arrival")
}

func TestBuildEmailBodies_NoInsights(t *testing.T) {
	report := &models.Report{Period: "daily", Business: "Empty"}

	html, err := buildEmailHTML(report)
	require.NoError(t, err)
	assert.NotContains(t, html, "Average Rating")
	assert.NotContains(t, buildEmailText(report), "Average Rating")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "caf...", truncate("café au lait", 3))
	assert.Equal(t, "café...", truncate("café au lait", 4))
}
