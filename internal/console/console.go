// Package console renders batch analysis results for the command-line tools.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/review-insights/review-insights-bot/internal/models"
)

var (
	heading  = color.New(color.FgHiBlue, color.Bold, color.Underline)
	rule     = color.New(color.FgWhite, color.Bold)
	positive = color.New(color.FgHiGreen, color.Bold)
	negative = color.New(color.FgHiRed, color.Bold)
	mixed    = color.New(color.FgHiYellow, color.Bold)
	muted    = color.New(color.FgHiBlack)
)

func label(l string) string {
	switch l {
	case models.LabelPositive:
		return positive.Sprint(l)
	case models.LabelNegative:
		return negative.Sprint(l)
	case models.LabelMixed:
		return mixed.Sprint(l)
	}
	return muted.Sprint(l)
}

func severity(s string) string {
	switch s {
	case models.SeverityHigh:
		return negative.Sprint(s)
	case models.SeverityMedium:
		return mixed.Sprint(s)
	}
	return muted.Sprint(s)
}

// PrintAnalysis writes a human-readable summary of batch to w
func PrintAnalysis(w io.Writer, title string, batch *models.BatchAnalysis) error {
	heading.Fprintln(w, title)
	fmt.Fprintf(w, "Reviews: %d  Average rating: %.2f  Sentiment: %s (score %+.2f, confidence %.0f%%)\n",
		batch.ReviewCount, batch.AverageRating, label(batch.OverallSentiment.Label),
		batch.OverallSentiment.Score, batch.OverallSentiment.Confidence*100)

	if len(batch.AspectSentiments) > 0 {
		fmt.Fprintln(w)
		heading.Fprintln(w, "Aspects")
		rows := [][]string{{"Aspect", "Sentiment", "Score", "Mentions", "Example"}}
		for _, a := range batch.AspectSentiments {
			example := ""
			if len(a.Examples) > 0 {
				example = a.Examples[0]
			}
			rows = append(rows, []string{a.Aspect, label(a.Sentiment.Label), fmt.Sprintf("%+.2f", a.Sentiment.Score), fmt.Sprintf("%d", a.Mentions), example})
		}
		if err := renderTable(w, rows); err != nil {
			return err
		}
	}

	if len(batch.Complaints) > 0 {
		fmt.Fprintln(w)
		heading.Fprintln(w, "Complaints")
		rows := [][]string{{"Review", "Category", "Severity", "Keywords", "Suggested action"}}
		for _, c := range batch.Complaints {
			rows = append(rows, []string{c.ReviewID, c.Category, severity(c.Severity), strings.Join(c.Keywords, ", "), c.SuggestedAction})
		}
		if err := renderTable(w, rows); err != nil {
			return err
		}
	}

	if len(batch.FeatureRequests) > 0 {
		fmt.Fprintln(w)
		heading.Fprintln(w, "Feature requests")
		rows := [][]string{{"Feature", "Priority", "Frequency"}}
		for _, f := range batch.FeatureRequests {
			rows = append(rows, []string{f.Feature, severity(f.Priority), fmt.Sprintf("%d", f.Frequency)})
		}
		if err := renderTable(w, rows); err != nil {
			return err
		}
	}

	rule.Fprintln(w, strings.Repeat("─", 63))
	return nil
}

func renderTable(w io.Writer, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("append table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}
