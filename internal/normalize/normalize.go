// Package normalize converts raw provider items into canonical reviews.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/review-insights/review-insights-bot/internal/metrics"
	"github.com/review-insights/review-insights-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// RawItem is one review item as returned by the provider
type RawItem = map[string]interface{}

var (
	ErrInvalidRating = errors.New("rating missing or outside 1-5")
	ErrEmptyContent  = errors.New("review content is empty")
)

// rawReview lists the provider fields we understand. Everything else lands
// in Extra and is kept as metadata.
type rawReview struct {
	ReviewID     string      `mapstructure:"review_id"`
	ID           string      `mapstructure:"id"`
	Rating       interface{} `mapstructure:"rating"`
	Title        string      `mapstructure:"title"`
	ReviewText   string      `mapstructure:"review_text"`
	Text         string      `mapstructure:"text"`
	Content      string      `mapstructure:"content"`
	ProfileName  string      `mapstructure:"profile_name"`
	Author       string      `mapstructure:"author"`
	Timestamp    string      `mapstructure:"timestamp"`
	Date         string      `mapstructure:"date"`
	Verified     bool        `mapstructure:"verified"`
	HelpfulCount int         `mapstructure:"helpful_count"`
	HelpfulVotes int         `mapstructure:"helpful_votes"`
	Images       interface{} `mapstructure:"images"`
	ReviewImages interface{} `mapstructure:"review_images"`

	Extra map[string]interface{} `mapstructure:",remain"`
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Review converts a single raw item. now is used for the synthesized id and
// as the date fallback.
func Review(platform string, item RawItem, now time.Time) (models.Review, error) {
	var raw rawReview
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       lenientScalar,
		WeaklyTypedInput: true,
		Result:           &raw,
	})
	if err != nil {
		return models.Review{}, err
	}
	if err := decoder.Decode(item); err != nil {
		return models.Review{}, fmt.Errorf("decode raw item: %w", err)
	}

	rating, ok := coerceRating(raw.Rating)
	if !ok {
		return models.Review{}, ErrInvalidRating
	}

	content := strings.TrimSpace(firstNonEmpty(raw.ReviewText, raw.Text, raw.Content))
	if content == "" {
		return models.Review{}, ErrEmptyContent
	}

	id := firstNonEmpty(raw.ReviewID, raw.ID)
	if id == "" {
		id = SyntheticID(platform, now)
	}

	metadata := make(map[string]interface{}, len(raw.Extra))
	for k, v := range raw.Extra {
		metadata[k] = v
	}

	review := models.Review{
		ID:           id,
		Platform:     platform,
		Author:       strings.TrimSpace(firstNonEmpty(raw.ProfileName, raw.Author)),
		Rating:       rating,
		Title:        strings.TrimSpace(raw.Title),
		Content:      content,
		Date:         parseDate(firstNonEmpty(raw.Timestamp, raw.Date), now),
		Verified:     raw.Verified,
		HelpfulCount: maxInt(raw.HelpfulCount, raw.HelpfulVotes),
		Images:       imageRefs(raw.Images, raw.ReviewImages),
		Metadata:     metadata,
	}

	return review, nil
}

// Reviews converts a batch, dropping items that fail validation
func Reviews(platform string, items []RawItem) []models.Review {
	now := time.Now()
	reviews := make([]models.Review, 0, len(items))

	for i, item := range items {
		review, err := Review(platform, item, now)
		if err != nil {
			logrus.Debugf("Rejected %s item %d: %v", platform, i, err)
			metrics.ReviewsProcessed.WithLabelValues(platform, "rejected").Inc()
			continue
		}
		metrics.ReviewsProcessed.WithLabelValues(platform, "accepted").Inc()
		reviews = append(reviews, review)
	}

	if rejected := len(items) - len(reviews); rejected > 0 {
		logrus.Infof("Normalized %d %s reviews (%d rejected)", len(reviews), platform, rejected)
	}

	return reviews
}

// SyntheticID builds an id for items the provider did not identify:
// {platform}_{unixMillis}_{random}
func SyntheticID(platform string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", platform, now.UnixMilli(), suffix)
}

// coerceRating accepts numbers, numeric strings and {"value": n} objects.
// Values outside 1..5 are rejected, never clamped.
func coerceRating(v interface{}) (int, bool) {
	if m, ok := v.(map[string]interface{}); ok {
		return coerceRating(m["value"])
	}

	f, ok := toFloat(v)
	if !ok || f < 1 || f > 5 {
		return 0, false
	}
	return int(math.Round(f)), true
}

// toFloat reports the finite numeric value of v, if it has one
func toFloat(v interface{}) (float64, bool) {
	var f float64

	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// lenientScalar converts values for the optional string, bool and int fields
// and zeroes the ones that cannot be converted. Only rating and content
// decide whether an item is rejected.
func lenientScalar(from, to reflect.Type, data interface{}) (interface{}, error) {
	switch to.Kind() {
	case reflect.String:
		switch v := data.(type) {
		case string:
			return v, nil
		case json.Number:
			return v.String(), nil
		case bool, int, int64, float32, float64:
			return fmt.Sprint(v), nil
		}
		return "", nil
	case reflect.Bool:
		switch v := data.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "yes", "y", "1":
				return true, nil
			}
			return false, nil
		}
		f, ok := toFloat(data)
		return ok && f != 0, nil
	case reflect.Int:
		f, ok := toFloat(data)
		if !ok || f < 0 || f > math.MaxInt32 {
			return 0, nil
		}
		return int(f), nil
	}
	return data, nil
}

func parseDate(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}

// imageRefs flattens image lists given either as strings or as objects with
// an image_url / url field.
func imageRefs(sources ...interface{}) []string {
	images := []string{}
	for _, src := range sources {
		list, ok := src.([]interface{})
		if !ok {
			continue
		}
		for _, entry := range list {
			switch img := entry.(type) {
			case string:
				if img != "" {
					images = append(images, img)
				}
			case map[string]interface{}:
				for _, key := range []string{"image_url", "url"} {
					if u, ok := img[key].(string); ok && u != "" {
						images = append(images, u)
						break
					}
				}
			}
		}
	}
	return images
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
