package acquisition

import "time"

const (
	DefaultBaseURL      = "https://api.dataforseo.com"
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 300 * time.Second
)

// Config holds per-client provider settings
type Config struct {
	// Credentials: login/password basic auth, or an API key sent as a
	// bearer token when set.
	Login    string
	Password string
	APIKey   string

	BaseURL string
	Timeout time.Duration

	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	MaxConcurrent int
	MinInterval   time.Duration

	PollInterval time.Duration
	MaxWait      time.Duration

	// Consecutive retryable failures before the circuit opens; 0 disables
	BreakerThreshold int
}

// DefaultConfig returns production defaults without credentials
func DefaultConfig() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		Timeout:          DefaultTimeout,
		MaxRetries:       3,
		InitialDelay:     time.Second,
		MaxDelay:         30 * time.Second,
		MaxConcurrent:    2,
		MinInterval:      time.Second,
		PollInterval:     DefaultPollInterval,
		MaxWait:          DefaultMaxWait,
		BreakerThreshold: 5,
	}
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = 1
	}
	if c.MinInterval < 0 {
		c.MinInterval = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	return c
}

func (c Config) hasCredentials() bool {
	return c.APIKey != "" || (c.Login != "" && c.Password != "")
}
