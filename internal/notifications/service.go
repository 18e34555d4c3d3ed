package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/review-insights/review-insights-bot/internal/config"
	"github.com/review-insights/review-insights-bot/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const (
	topAspects   = 5
	topRequests  = 5
	topComplaint = 10
)

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendReport sends a report via configured notification channels
func (s *Service) SendReport(report *models.Report) error {
	return s.fanOut("report", func() error {
		return s.postTeams(s.buildTeamsMessage(report))
	}, func() error {
		return s.sendReportEmail(report)
	})
}

// SendAlert sends an urgent complaint alert via configured notification channels
func (s *Service) SendAlert(alert *models.Alert) error {
	return s.fanOut("alert", func() error {
		return s.postTeams(s.buildAlertMessage(alert))
	}, func() error {
		return s.sendMail(fmt.Sprintf("[%s] %s", strings.ToUpper(alert.Type), alert.Title), buildAlertText(alert), "")
	})
}

func (s *Service) fanOut(kind string, teams, email func() error) error {
	var errors []string

	// Send to Teams if configured
	if s.config.TeamsWebhookURL != "" {
		if err := teams(); err != nil {
			logrus.Errorf("Failed to send Teams %s: %v", kind, err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Infof("Successfully sent %s to Teams", kind)
		}
	}

	// Send via email if configured
	if s.config.NotificationEmail != "" {
		if err := email(); err != nil {
			logrus.Errorf("Failed to send email %s: %v", kind, err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Infof("Successfully sent %s via email", kind)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) postTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(report *models.Report) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Review Insights - %s (%s)", report.Business, strings.Title(report.Period)),
		Text:    fmt.Sprintf("Analyzed %d reviews for the %s period", report.TotalReviews, report.Period),
	}

	insights := report.Insights
	if insights == nil {
		return message
	}

	facts := []TeamsFact{
		{Name: "Total Reviews", Value: fmt.Sprintf("%d", report.TotalReviews)},
		{Name: "Average Rating", Value: fmt.Sprintf("%.2f", insights.AverageRating)},
		{Name: "Overall Sentiment", Value: describeSentiment(insights.OverallSentiment)},
		{Name: "Complaints", Value: fmt.Sprintf("%d", len(insights.Complaints))},
		{Name: "Generated", Value: report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
	}
	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(insights.AspectSentiments) > 0 {
		var aspectFacts []TeamsFact
		for i, a := range insights.AspectSentiments {
			if i >= topAspects {
				break
			}
			aspectFacts = append(aspectFacts, TeamsFact{
				Name:  strings.Title(a.Aspect),
				Value: fmt.Sprintf("%s, %d mentions", describeSentiment(a.Sentiment), a.Mentions),
			})
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Aspects",
			Facts:         aspectFacts,
			Markdown:      true,
		})
	}

	if len(insights.Complaints) > 0 {
		var lines []string
		for i, c := range insights.Complaints {
			if i >= topComplaint {
				break
			}
			lines = append(lines, fmt.Sprintf("**%s** (%s) - %s", strings.Title(c.Category), c.Severity, c.SuggestedAction))
		}
		message.ThemeColor = "d13438"
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Complaints",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	if len(insights.FeatureRequests) > 0 {
		var lines []string
		for i, f := range insights.FeatureRequests {
			if i >= topRequests {
				break
			}
			lines = append(lines, fmt.Sprintf("%s (x%d, %s priority)", f.Feature, f.Frequency, f.Priority))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Feature Requests",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) buildAlertMessage(alert *models.Alert) *TeamsMessage {
	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "d13438",
		Title:      alert.Title,
		Text:       alert.Message,
	}

	var facts []TeamsFact
	facts = append(facts, TeamsFact{Name: "Business", Value: alert.Business})
	if c := alert.Complaint; c != nil {
		facts = append(facts,
			TeamsFact{Name: "Category", Value: c.Category},
			TeamsFact{Name: "Severity", Value: c.Severity},
			TeamsFact{Name: "Keywords", Value: strings.Join(c.Keywords, ", ")},
		)
	}

	section := TeamsSection{
		ActivityTitle: "Complaint",
		Facts:         facts,
		Markdown:      true,
	}
	if r := alert.Review; r != nil {
		section.ActivitySubtitle = fmt.Sprintf("%d stars by %s on %s", r.Rating, authorOrAnonymous(r.Author), r.Platform)
		section.ActivityText = truncate(r.Content, 500)
	}
	message.Sections = append(message.Sections, section)

	return message
}

func (s *Service) sendReportEmail(report *models.Report) error {
	subject := fmt.Sprintf("Review Insights - %s - %s (%d reviews)",
		report.Business, strings.Title(report.Period), report.TotalReviews)

	htmlBody, err := buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	return s.sendMail(subject, buildEmailText(report), htmlBody)
}

func (s *Service) sendMail(subject, textBody, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

var emailTemplate = template.Must(template.New("email").Funcs(template.FuncMap{
	"title":     strings.Title,
	"truncate":  truncate,
	"sentiment": describeSentiment,
}).Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Review Insights Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #0078d4; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .item { border-left: 4px solid #0078d4; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .high { border-left-color: #d13438; }
        .medium { border-left-color: #ff8c00; }
        .low { border-left-color: #605e5c; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Business}}</h1>
        <p>{{.Period}} report generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total Reviews:</strong> {{.TotalReviews}}</p>
        {{with .Insights}}
        <p><strong>Average Rating:</strong> {{printf "%.2f" .AverageRating}}</p>
        <p><strong>Overall Sentiment:</strong> {{sentiment .OverallSentiment}}</p>
        {{end}}
    </div>

    {{with .Insights}}
    {{if .AspectSentiments}}
    <h2>Aspects</h2>
    {{range .AspectSentiments}}
        <div class="item">
            <strong>{{.Aspect | title}}</strong>: {{sentiment .Sentiment}} ({{.Mentions}} mentions)
            {{range .Examples}}<p><em>{{truncate . 100}}</em></p>{{end}}
        </div>
    {{end}}
    {{end}}

    {{if .Complaints}}
    <h2>Complaints</h2>
    {{range $index, $c := .Complaints}}
        {{if lt $index 10}}
        <div class="item {{$c.Severity}}">
            <strong>{{$c.Category | title}}</strong> ({{$c.Severity}}): {{$c.SuggestedAction}}
        </div>
        {{end}}
    {{end}}
    {{end}}

    {{if .FeatureRequests}}
    <h2>Feature Requests</h2>
    {{range .FeatureRequests}}
        <div class="item">{{.Feature}} <small>x{{.Frequency}}, {{.Priority}} priority</small></div>
    {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This report was generated automatically by the Review Insights Bot.</small></p>
</body>
</html>
`))

func buildEmailHTML(report *models.Report) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildEmailText(report *models.Report) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Review Insights - %s - %s\n", report.Business, strings.Title(report.Period)))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total Reviews: %d\n", report.TotalReviews))

	insights := report.Insights
	if insights == nil {
		return text.String()
	}

	text.WriteString(fmt.Sprintf("Average Rating: %.2f\n", insights.AverageRating))
	text.WriteString(fmt.Sprintf("Overall Sentiment: %s\n", describeSentiment(insights.OverallSentiment)))

	if len(insights.AspectSentiments) > 0 {
		text.WriteString("\nASPECTS\n")
		text.WriteString("=======\n")
		for _, a := range insights.AspectSentiments {
			text.WriteString(fmt.Sprintf("%s: %s (%d mentions)\n", strings.Title(a.Aspect), describeSentiment(a.Sentiment), a.Mentions))
		}
	}

	if len(insights.Complaints) > 0 {
		text.WriteString("\nCOMPLAINTS\n")
		text.WriteString("==========\n")
		for i, c := range insights.Complaints {
			if i >= topComplaint {
				text.WriteString(fmt.Sprintf("... and %d more\n", len(insights.Complaints)-topComplaint))
				break
			}
			text.WriteString(fmt.Sprintf("%d. %s (%s): %s\n", i+1, strings.Title(c.Category), c.Severity, c.SuggestedAction))
		}
	}

	if len(insights.FeatureRequests) > 0 {
		text.WriteString("\nFEATURE REQUESTS\n")
		text.WriteString("================\n")
		for i, f := range insights.FeatureRequests {
			text.WriteString(fmt.Sprintf("%d. %s (x%d, %s priority)\n", i+1, f.Feature, f.Frequency, f.Priority))
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by the Review Insights Bot.\n")

	return text.String()
}

func buildAlertText(alert *models.Alert) string {
	var text strings.Builder

	text.WriteString(alert.Title + "\n\n")
	text.WriteString(alert.Message + "\n")
	if c := alert.Complaint; c != nil {
		text.WriteString(fmt.Sprintf("\nCategory: %s\nSeverity: %s\nKeywords: %s\n", c.Category, c.Severity, strings.Join(c.Keywords, ", ")))
	}
	if r := alert.Review; r != nil {
		text.WriteString(fmt.Sprintf("\n%d stars by %s on %s (%s)\n", r.Rating, authorOrAnonymous(r.Author), r.Platform, r.Date.Format("Jan 2, 2006")))
		text.WriteString(fmt.Sprintf("%s\n", truncate(r.Content, 500)))
	}

	return text.String()
}

func describeSentiment(s models.SentimentResult) string {
	return fmt.Sprintf("%s (%+.2f, confidence %.0f%%)", s.Label, s.Score, s.Confidence*100)
}

func authorOrAnonymous(author string) string {
	if author == "" {
		return "anonymous"
	}
	return author
}

func truncate(s string, length int) string {
	runes := []rune(s)
	if len(runes) <= length {
		return s
	}
	return string(runes[:length]) + "..."
}
