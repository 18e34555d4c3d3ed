package models

import "time"

// Review is a canonical customer review acquired from a review platform
type Review struct {
	ID           string                 `json:"id"`
	Platform     string                 `json:"platform"` // "google", "trustpilot", "tripadvisor", "yelp"
	Author       string                 `json:"author"`
	Rating       int                    `json:"rating"` // 1-5
	Title        string                 `json:"title,omitempty"`
	Content      string                 `json:"content"`
	Date         time.Time              `json:"date"`
	Verified     bool                   `json:"verified"`
	HelpfulCount int                    `json:"helpful_count"`
	Images       []string               `json:"images"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// Valid reports whether the review satisfies the rating and content invariants
func (r Review) Valid() bool {
	return r.Rating >= 1 && r.Rating <= 5 && r.Content != ""
}

// TaskState is the lifecycle state of a retrieval task
type TaskState string

const (
	TaskCreated   TaskState = "created"
	TaskSubmitted TaskState = "submitted"
	TaskPolling   TaskState = "polling"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskTimedOut  TaskState = "timed_out"
)

// Terminal reports whether no further transitions are possible
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskTimedOut
}

// TaskParams are the business parameters submitted with a retrieval task
type TaskParams struct {
	Keyword      string `json:"keyword"`
	LocationName string `json:"location_name,omitempty"`
	LanguageName string `json:"language_name,omitempty"`
	Depth        int    `json:"depth,omitempty"`
	RatingFilter []int  `json:"rating_filter,omitempty"`
	SortBy       string `json:"sort_by,omitempty"` // "newest", "highest_rating", "lowest_rating", "most_relevant"
}

// RetrievalTask is the provider's asynchronous unit of work for one review fetch
type RetrievalTask struct {
	ID          string                   `json:"id"`
	Platform    string                   `json:"platform"`
	Params      TaskParams               `json:"params"`
	State       TaskState                `json:"state"`
	SubmittedAt time.Time                `json:"submitted_at"`
	Polls       int                      `json:"polls"`
	Items       []map[string]interface{} `json:"items,omitempty"`
	Err         error                    `json:"-"`
}

// Sentiment labels
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
	LabelMixed    = "mixed"
)

// SentimentResult is the polarity of a piece of text
type SentimentResult struct {
	Score      float64 `json:"score"`     // -1..1
	Magnitude  float64 `json:"magnitude"` // 0..1
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"` // 0..1
}

// AspectSentiment aggregates sentiment for one topical bucket
type AspectSentiment struct {
	Aspect    string          `json:"aspect"`
	Sentiment SentimentResult `json:"sentiment"`
	Mentions  int             `json:"mentions"`
	Examples  []string        `json:"examples"`
}

// Severity levels shared by complaints and alerts
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ComplaintDetection flags complaint-like text
type ComplaintDetection struct {
	ReviewID        string   `json:"review_id,omitempty"`
	IsComplaint     bool     `json:"is_complaint"`
	Severity        string   `json:"severity"`
	Category        string   `json:"category"`
	Keywords        []string `json:"keywords"`
	SuggestedAction string   `json:"suggested_action,omitempty"`
}

// FeatureRequest is a request-intent signal extracted from a review
type FeatureRequest struct {
	IsFeatureRequest bool   `json:"is_feature_request"`
	Feature          string `json:"feature"`
	Priority         string `json:"priority"`
	Frequency        int    `json:"frequency"`
}

// BatchAnalysis is the corpus-level summary for a set of reviews
type BatchAnalysis struct {
	ReviewCount      int                  `json:"review_count"`
	AverageRating    float64              `json:"average_rating"`
	OverallSentiment SentimentResult      `json:"overall_sentiment"`
	AspectSentiments []AspectSentiment    `json:"aspect_sentiments"`
	Complaints       []ComplaintDetection `json:"complaints"`
	FeatureRequests  []FeatureRequest     `json:"feature_requests"`
}

// Report represents a periodic insight report for one business
type Report struct {
	GeneratedAt  time.Time              `json:"generated_at"`
	Period       string                 `json:"period"` // "daily" or "weekly"
	Business     string                 `json:"business"`
	TotalReviews int                    `json:"total_reviews"`
	Reviews      []Review               `json:"reviews"`
	Insights     *BatchAnalysis         `json:"insights"`
	Summary      map[string]interface{} `json:"summary"`
}

// Alert represents an urgent notification
type Alert struct {
	ID        string              `json:"id"`
	Type      string              `json:"type"` // "critical", "urgent", "info"
	Title     string              `json:"title"`
	Message   string              `json:"message"`
	Business  string              `json:"business"`
	Review    *Review             `json:"review,omitempty"`
	Complaint *ComplaintDetection `json:"complaint,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}
