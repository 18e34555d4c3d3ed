// Package acquisition fetches reviews from the data provider's asynchronous
// task API.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/review-insights/review-insights-bot/internal/apierr"
	"github.com/review-insights/review-insights-bot/internal/metrics"
	"github.com/review-insights/review-insights-bot/internal/models"
	"github.com/review-insights/review-insights-bot/internal/normalize"
	"github.com/review-insights/review-insights-bot/internal/ratelimit"
	"github.com/review-insights/review-insights-bot/internal/retry"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Provider status codes
const (
	statusOK          = 20000
	statusTaskCreated = 20100
	statusTaskHanded  = 40601
	statusTaskInQueue = 40602
)

// ErrWaitBudgetExceeded marks a task that was still processing when the
// poll budget ran out. The task may still complete provider-side.
var ErrWaitBudgetExceeded = errors.New("retrieval task still processing after wait budget")

var validSortBy = map[string]bool{
	"":               true,
	"newest":         true,
	"highest_rating": true,
	"lowest_rating":  true,
	"most_relevant":  true,
}

type taskEnvelope struct {
	StatusCode    int            `json:"status_code"`
	StatusMessage string         `json:"status_message"`
	Tasks         []providerTask `json:"tasks"`
}

type providerTask struct {
	ID            string `json:"id"`
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Result        []struct {
		Items []normalize.RawItem `json:"items"`
	} `json:"result"`
}

// Client talks to the review data provider. One client (or at least one
// limiter) should be shared by everything using the same credential.
type Client struct {
	cfg     Config
	http    *resty.Client
	limiter *ratelimit.Limiter
	policy  retry.Policy
	breaker *gobreaker.CircuitBreaker
}

// Option customizes a Client
type Option func(*Client)

// WithLimiter shares an existing limiter, e.g. between clients that use
// the same credential
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithRetryPolicy overrides the policy derived from Config
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// NewClient creates a provider client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if !cfg.hasCredentials() {
		return nil, apierr.New(apierr.KindAuthentication, "config", "provider login/password or API key is required")
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "Review-Insights-Bot/1.0").
		SetHeader("Content-Type", "application/json")
	httpClient.JSONMarshal = json.Marshal
	httpClient.JSONUnmarshal = json.Unmarshal

	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	} else {
		httpClient.SetBasicAuth(cfg.Login, cfg.Password)
	}

	c := &Client{
		cfg:  cfg,
		http: httpClient,
		policy: retry.Policy{
			MaxRetries:   cfg.MaxRetries,
			InitialDelay: cfg.InitialDelay,
			MaxDelay:     cfg.MaxDelay,
			Factor:       2,
		},
	}

	if cfg.BreakerThreshold > 0 {
		threshold := uint32(cfg.BreakerThreshold)
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "review-provider",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// Terminal answers (bad credentials, bad params) mean the
			// provider is up.
			IsSuccessful: func(err error) bool {
				return err == nil || !apierr.IsRetryable(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logrus.Warnf("Circuit breaker %s changed from %s to %s", name, from, to)
			},
		})
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.limiter == nil {
		c.limiter = ratelimit.New(cfg.MaxConcurrent, cfg.MinInterval)
	}

	return c, nil
}

// Limiter returns the limiter guarding provider calls
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// FetchReviews submits a retrieval task, waits for it and returns the
// normalized reviews.
func (c *Client) FetchReviews(ctx context.Context, platform Platform, params models.TaskParams) ([]models.Review, error) {
	task, err := c.Submit(ctx, platform, params)
	if err != nil {
		return nil, fmt.Errorf("submit %s task: %w", platform, err)
	}

	items, err := c.Wait(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("wait for %s task %s: %w", platform, task.ID, err)
	}

	reviews := normalize.Reviews(platform.String(), items)
	logrus.Infof("Fetched %d %s reviews for %q after %d polls", len(reviews), platform, params.Keyword, task.Polls)

	return reviews, nil
}

// Submit posts a retrieval task. The returned task is always non-nil; on
// failure it is in the Failed state and carries the error.
func (c *Client) Submit(ctx context.Context, platform Platform, params models.TaskParams) (*models.RetrievalTask, error) {
	task := &models.RetrievalTask{
		Platform: platform.String(),
		Params:   params,
		State:    models.TaskCreated,
	}

	ep, err := platform.endpoints()
	if err != nil {
		return task, c.fail(task, err)
	}
	if err := validateParams(params); err != nil {
		return task, c.fail(task, err)
	}

	env, err := c.call(ctx, task, "submit", func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody([]models.TaskParams{params}).Post(ep.taskPost)
	})
	if err != nil {
		return task, c.fail(task, err)
	}

	pt := env.Tasks[0]
	if pt.ID == "" {
		return task, c.fail(task, apierr.New(apierr.KindValidation, "submit", "provider returned no task id"))
	}

	task.ID = pt.ID
	task.State = models.TaskSubmitted
	task.SubmittedAt = time.Now()

	logrus.Debugf("Submitted %s task %s for %q", platform, task.ID, params.Keyword)
	return task, nil
}

// Wait polls a submitted task until it completes, fails, or exceeds the
// wait budget. No lock is held between polls.
func (c *Client) Wait(ctx context.Context, task *models.RetrievalTask) ([]normalize.RawItem, error) {
	if task == nil || task.State != models.TaskSubmitted {
		return nil, apierr.New(apierr.KindValidation, "poll", "task is not in submitted state")
	}

	platform, err := ParsePlatform(task.Platform)
	if err != nil {
		return nil, c.fail(task, err)
	}
	ep, err := platform.endpoints()
	if err != nil {
		return nil, c.fail(task, err)
	}

	task.State = models.TaskPolling
	start := time.Now()
	deadline := start.Add(c.cfg.MaxWait)
	path := ep.taskGet + url.PathEscape(task.ID)

	for {
		env, err := c.call(ctx, task, "poll", func(req *resty.Request) (*resty.Response, error) {
			return req.Get(path)
		})
		task.Polls++
		if err != nil {
			return nil, c.fail(task, err)
		}

		pt := env.Tasks[0]
		switch pt.StatusCode {
		case statusOK:
			var items []normalize.RawItem
			for _, r := range pt.Result {
				items = append(items, r.Items...)
			}
			task.State = models.TaskCompleted
			task.Items = items
			metrics.TaskOutcomes.WithLabelValues(task.Platform, string(task.State)).Inc()
			return items, nil
		case statusTaskCreated, statusTaskHanded, statusTaskInQueue:
			logrus.Debugf("Task %s still processing (%s)", task.ID, pt.StatusMessage)
		default:
			return nil, c.fail(task, apierr.FromProviderStatus("poll", pt.StatusCode, pt.StatusMessage))
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, c.timeOut(task, start)
		}

		timer := time.NewTimer(min(c.cfg.PollInterval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, c.fail(task, ctx.Err())
		case <-timer.C:
		}

		if !time.Now().Before(deadline) {
			return nil, c.timeOut(task, start)
		}
	}
}

// timeOut ends a task whose wait budget ran out while it was still processing
func (c *Client) timeOut(task *models.RetrievalTask, start time.Time) error {
	err := &apierr.Error{
		Kind:    apierr.KindTimeout,
		Op:      "poll",
		Message: fmt.Sprintf("task %s still processing after %s", task.ID, time.Since(start).Round(time.Millisecond)),
		Err:     ErrWaitBudgetExceeded,
	}
	task.State = models.TaskTimedOut
	task.Err = err
	metrics.TaskOutcomes.WithLabelValues(task.Platform, string(task.State)).Inc()
	return err
}

// IsTimedOut reports whether err is a poll budget timeout rather than a
// provider failure
func IsTimedOut(err error) bool {
	return errors.Is(err, ErrWaitBudgetExceeded)
}

func (c *Client) fail(task *models.RetrievalTask, err error) error {
	task.State = models.TaskFailed
	task.Err = err
	metrics.TaskOutcomes.WithLabelValues(task.Platform, string(task.State)).Inc()
	return err
}

// call performs one provider request under the retry policy. The limiter
// slot is held only for the request itself.
func (c *Client) call(ctx context.Context, task *models.RetrievalTask, op string, send func(*resty.Request) (*resty.Response, error)) (*taskEnvelope, error) {
	policy := c.policy
	next := policy.Notify
	policy.Notify = func(err error, attempt int, delay time.Duration) {
		fields := logrus.Fields{
			"platform": task.Platform,
			"op":       op,
			"attempt":  attempt,
			"delay":    delay.String(),
		}
		if task.ID != "" {
			fields["task"] = task.ID
		}
		logrus.WithFields(fields).Warnf("Provider %s failed, retrying: %v", op, err)
		if next != nil {
			next(err, attempt, delay)
		}
	}

	return retry.Value(ctx, policy, func(ctx context.Context) (*taskEnvelope, error) {
		release, err := c.limiter.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()

		if c.breaker == nil {
			return c.do(ctx, op, send)
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(ctx, op, send)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apierr.Wrap(apierr.KindNetwork, op, err)
		}
		if err != nil {
			return nil, err
		}
		return result.(*taskEnvelope), nil
	})
}

func (c *Client) do(ctx context.Context, op string, send func(*resty.Request) (*resty.Response, error)) (*taskEnvelope, error) {
	start := time.Now()
	resp, err := send(c.http.R().SetContext(ctx))
	metrics.ProviderRequests.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, apierr.FromTransport(op, err, ctx.Err())
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, apierr.FromHTTPStatus(op, resp.StatusCode(), truncate(string(resp.Body()), 200), parseRetryAfter(resp.Header().Get("Retry-After")))
	}

	var env taskEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, apierr.Wrap(apierr.KindNetwork, op, fmt.Errorf("decode response: %w", err))
	}

	if env.StatusCode != statusOK {
		return nil, apierr.FromProviderStatus(op, env.StatusCode, env.StatusMessage)
	}
	if len(env.Tasks) == 0 {
		return nil, apierr.New(apierr.KindValidation, op, "provider response contains no tasks")
	}

	switch code := env.Tasks[0].StatusCode; code {
	case statusOK, statusTaskCreated, statusTaskHanded, statusTaskInQueue:
	default:
		return nil, apierr.FromProviderStatus(op, code, env.Tasks[0].StatusMessage)
	}

	return &env, nil
}

func validateParams(params models.TaskParams) error {
	if params.Keyword == "" {
		return apierr.New(apierr.KindValidation, "submit", "keyword is required")
	}
	if params.Depth < 0 {
		return apierr.New(apierr.KindValidation, "submit", "depth must not be negative")
	}
	for _, r := range params.RatingFilter {
		if r < 1 || r > 5 {
			return apierr.New(apierr.KindValidation, "submit", fmt.Sprintf("rating filter value %d outside 1-5", r))
		}
	}
	if !validSortBy[params.SortBy] {
		return apierr.New(apierr.KindValidation, "submit", fmt.Sprintf("unsupported sort order %q", params.SortBy))
	}
	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
