package analysis

import (
	"context"
	"runtime"
	"sort"
	"strings"

	"github.com/review-insights/review-insights-bot/internal/models"
	"golang.org/x/sync/errgroup"
)

// reviewAnalysis holds everything computed for a single review
type reviewAnalysis struct {
	sentiment models.SentimentResult
	complaint models.ComplaintDetection
	request   models.FeatureRequest
}

func analyzeReview(review models.Review) reviewAnalysis {
	sentiment := AnalyzeSentiment(review.Content)
	return reviewAnalysis{
		sentiment: sentiment,
		complaint: detectComplaint(review.Content, sentiment),
		request:   DetectFeatureRequest(review.Content),
	}
}

// AnalyzeBatch builds the corpus-level summary for a set of reviews.
// Reviews are analyzed in parallel and reduced in input order.
func AnalyzeBatch(reviews []models.Review) *models.BatchAnalysis {
	results := make([]reviewAnalysis, len(reviews))

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range reviews {
		i := i
		g.Go(func() error {
			results[i] = analyzeReview(reviews[i])
			return nil
		})
	}
	_ = g.Wait()

	return reduce(reviews, results)
}

func reduce(reviews []models.Review, results []reviewAnalysis) *models.BatchAnalysis {
	batch := &models.BatchAnalysis{
		ReviewCount:      len(reviews),
		OverallSentiment: neutralResult(),
		AspectSentiments: []models.AspectSentiment{},
		Complaints:       []models.ComplaintDetection{},
		FeatureRequests:  []models.FeatureRequest{},
	}
	if len(reviews) == 0 {
		return batch
	}

	sentiments := make([]models.SentimentResult, len(results))
	scores := make([]float64, len(results))
	magnitudes := make([]float64, len(results))
	ratingSum := 0

	for i, r := range results {
		sentiments[i] = r.sentiment
		scores[i] = r.sentiment.Score
		magnitudes[i] = r.sentiment.Magnitude
		ratingSum += reviews[i].Rating

		if r.complaint.IsComplaint {
			complaint := r.complaint
			complaint.ReviewID = reviews[i].ID
			batch.Complaints = append(batch.Complaints, complaint)
		}
	}

	batch.AverageRating = float64(ratingSum) / float64(len(reviews))
	batch.OverallSentiment = aggregateResult(mean(scores), mean(magnitudes))
	batch.AspectSentiments = extractAspects(reviews, sentiments)
	batch.FeatureRequests = mergeFeatureRequests(results)

	return batch
}

// mergeFeatureRequests dedupes by lower-cased feature text, summing
// frequency, then ranks by frequency keeping first-seen order on ties.
func mergeFeatureRequests(results []reviewAnalysis) []models.FeatureRequest {
	merged := []models.FeatureRequest{}
	index := make(map[string]int)

	for _, r := range results {
		if !r.request.IsFeatureRequest {
			continue
		}
		key := strings.ToLower(r.request.Feature)
		if i, ok := index[key]; ok {
			merged[i].Frequency += r.request.Frequency
			continue
		}
		index[key] = len(merged)
		merged = append(merged, r.request)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Frequency > merged[j].Frequency
	})

	return merged
}
