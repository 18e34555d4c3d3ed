package acquisition

import (
	"fmt"
	"strings"

	"github.com/review-insights/review-insights-bot/internal/apierr"
)

// Platform is a review platform supported by the provider
type Platform int

const (
	PlatformGoogle Platform = iota + 1
	PlatformTrustpilot
	PlatformTripadvisor
	PlatformYelp
)

// Platforms lists every supported platform in table order
var Platforms = []Platform{PlatformGoogle, PlatformTrustpilot, PlatformTripadvisor, PlatformYelp}

type endpoints struct {
	name     string
	taskPost string
	taskGet  string // task id is appended
}

var platformEndpoints = map[Platform]endpoints{
	PlatformGoogle: {
		name:     "google",
		taskPost: "/v3/business_data/google/reviews/task_post",
		taskGet:  "/v3/business_data/google/reviews/task_get/",
	},
	PlatformTrustpilot: {
		name:     "trustpilot",
		taskPost: "/v3/business_data/trustpilot/reviews/task_post",
		taskGet:  "/v3/business_data/trustpilot/reviews/task_get/",
	},
	PlatformTripadvisor: {
		name:     "tripadvisor",
		taskPost: "/v3/business_data/tripadvisor/reviews/task_post",
		taskGet:  "/v3/business_data/tripadvisor/reviews/task_get/",
	},
	PlatformYelp: {
		name:     "yelp",
		taskPost: "/v3/business_data/yelp/reviews/task_post",
		taskGet:  "/v3/business_data/yelp/reviews/task_get/",
	},
}

func (p Platform) String() string {
	if e, ok := platformEndpoints[p]; ok {
		return e.name
	}
	return fmt.Sprintf("platform(%d)", int(p))
}

func (p Platform) endpoints() (endpoints, error) {
	e, ok := platformEndpoints[p]
	if !ok {
		return endpoints{}, apierr.New(apierr.KindValidation, "submit", fmt.Sprintf("unsupported platform %s", p))
	}
	return e, nil
}

// ParsePlatform resolves a platform by name (case-insensitive)
func ParsePlatform(name string) (Platform, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range Platforms {
		if platformEndpoints[p].name == name {
			return p, nil
		}
	}
	return 0, apierr.New(apierr.KindValidation, "config", fmt.Sprintf("unknown platform %q", name))
}
