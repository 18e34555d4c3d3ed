package normalize

import (
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/review-insights/review-insights-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func TestReview_ProviderItem(t *testing.T) {
	item := RawItem{
		"review_id":     "ChZDSUhNMG9nS0VJQ0FnSUNr",
		"rating":        map[string]interface{}{"rating_type": "Max5", "value": 4.0, "votes_count": nil},
		"title":         "  Dinner  ",
		"review_text":   "  Great food and friendly staff.  ",
		"profile_name":  "Jane D.",
		"timestamp":     "2024-11-15 18:22:05 +00:00",
		"verified":      "true",
		"helpful_count": "3",
		"review_images": []interface{}{map[string]interface{}{"image_url": "https://img.example/1.jpg"}, "https://img.example/2.jpg"},
		"owner_answer":  "Thanks for visiting!",
		"local_guide":   true,
	}

	review, err := Review("google", item, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "ChZDSUhNMG9nS0VJQ0FnSUNr", review.ID)
	assert.Equal(t, "google", review.Platform)
	assert.Equal(t, 4, review.Rating)
	assert.Equal(t, "Dinner", review.Title)
	assert.Equal(t, "Great food and friendly staff.", review.Content)
	assert.Equal(t, "Jane D.", review.Author)
	assert.Equal(t, time.Date(2024, 11, 15, 18, 22, 5, 0, time.UTC), review.Date.UTC())
	assert.True(t, review.Verified)
	assert.Equal(t, 3, review.HelpfulCount)
	assert.Equal(t, []string{"https://img.example/1.jpg", "https://img.example/2.jpg"}, review.Images)

	assert.Equal(t, "Thanks for visiting!", review.Metadata["owner_answer"])
	assert.Equal(t, true, review.Metadata["local_guide"])
	assert.NotContains(t, review.Metadata, "rating")
	assert.True(t, review.Valid())
}

func TestReview_Rating(t *testing.T) {
	tests := []struct {
		name     string
		rating   interface{}
		expected int
		valid    bool
	}{
		{name: "Integer", rating: 5, expected: 5, valid: true},
		{name: "Float", rating: 3.0, expected: 3, valid: true},
		{name: "Fractional rounds", rating: 4.6, expected: 5, valid: true},
		{name: "Numeric string", rating: "2", expected: 2, valid: true},
		{name: "Value object", rating: map[string]interface{}{"value": 1}, expected: 1, valid: true},
		{name: "Zero", rating: 0, valid: false},
		{name: "Above range", rating: 6, valid: false},
		{name: "Slightly above range", rating: 5.2, valid: false},
		{name: "Negative", rating: -1, valid: false},
		{name: "NaN", rating: math.NaN(), valid: false},
		{name: "Infinity", rating: math.Inf(1), valid: false},
		{name: "Not a number", rating: "five", valid: false},
		{name: "Missing", rating: nil, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := RawItem{"id": "r1", "text": "Fine place", "rating": tt.rating}
			review, err := Review("yelp", item, fixedNow)
			if !tt.valid {
				assert.ErrorIs(t, err, ErrInvalidRating)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, review.Rating)
		})
	}
}

func TestReview_MalformedOptionalFields(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value interface{}
		check func(t *testing.T, r models.Review)
	}{
		{name: "Verified as yes", field: "verified", value: "yes", check: func(t *testing.T, r models.Review) { assert.True(t, r.Verified) }},
		{name: "Verified as object", field: "verified", value: map[string]interface{}{"badge": true}, check: func(t *testing.T, r models.Review) { assert.False(t, r.Verified) }},
		{name: "Title as object", field: "title", value: map[string]interface{}{"text": "Hi"}, check: func(t *testing.T, r models.Review) { assert.Empty(t, r.Title) }},
		{name: "Author as list", field: "profile_name", value: []interface{}{"Ana"}, check: func(t *testing.T, r models.Review) { assert.Empty(t, r.Author) }},
		{name: "Helpful count as text", field: "helpful_count", value: "many", check: func(t *testing.T, r models.Review) { assert.Equal(t, 0, r.HelpfulCount) }},
		{name: "Helpful count as numeric string", field: "helpful_votes", value: "7", check: func(t *testing.T, r models.Review) { assert.Equal(t, 7, r.HelpfulCount) }},
		{name: "Date as number", field: "timestamp", value: 12345.0, check: func(t *testing.T, r models.Review) { assert.Equal(t, fixedNow, r.Date) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := RawItem{"id": "r1", "rating": 4, "review_text": "Good coffee", tt.field: tt.value}
			review, err := Review("google", item, fixedNow)
			require.NoError(t, err)
			assert.Equal(t, "Good coffee", review.Content)
			assert.Equal(t, 4, review.Rating)
			tt.check(t, review)
		})
	}
}

func TestReview_EmptyContentRejected(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := Review("trustpilot", RawItem{"rating": 4, "review_text": content}, fixedNow)
		assert.ErrorIs(t, err, ErrEmptyContent)
	}
}

func TestReview_SynthesizesMissingID(t *testing.T) {
	review, err := Review("tripadvisor", RawItem{"rating": 3, "content": "Okay stay"}, fixedNow)
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^tripadvisor_1741944600000_[0-9a-f]{8}$`)
	assert.Regexp(t, pattern, review.ID)
	assert.Equal(t, fixedNow, review.Date)
	assert.Empty(t, review.Images)
	assert.NotNil(t, review.Metadata)
}

func TestReviews_DropsInvalidItems(t *testing.T) {
	items := []RawItem{
		{"id": "a", "rating": 5, "text": "Excellent"},
		{"id": "b", "rating": 9, "text": "Out of range"},
		{"id": "c", "rating": 2, "text": ""},
		{"id": "d", "rating": "oops", "text": "Bad rating"},
		{"id": "e", "rating": 1, "text": "Awful"},
	}

	reviews := Reviews("google", items)

	require.Len(t, reviews, 2)
	assert.Equal(t, "a", reviews[0].ID)
	assert.Equal(t, "e", reviews[1].ID)
	for _, r := range reviews {
		assert.GreaterOrEqual(t, r.Rating, 1)
		assert.LessOrEqual(t, r.Rating, 5)
	}
}
