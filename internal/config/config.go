package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/review-insights/review-insights-bot/internal/acquisition"
	"github.com/review-insights/review-insights-bot/internal/models"
	"gopkg.in/yaml.v3"
)

// Business is a tracked business and where to look for its reviews
type Business struct {
	Name      string   `yaml:"name"`
	Keyword   string   `yaml:"keyword"` // provider search keyword, defaults to Name
	Location  string   `yaml:"location"`
	Language  string   `yaml:"language"`
	Platforms []string `yaml:"platforms"`
}

// TaskParams returns the provider task parameters for this business
func (b Business) TaskParams(depth int) models.TaskParams {
	keyword := b.Keyword
	if keyword == "" {
		keyword = b.Name
	}
	return models.TaskParams{
		Keyword:      keyword,
		LocationName: b.Location,
		LanguageName: b.Language,
		Depth:        depth,
	}
}

type businessesFile struct {
	Businesses []Business `yaml:"businesses"`
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	ReportSchedule string // "daily" or "weekly"
	UrgentSchedule string

	// Storage configuration
	StorageAccount   string
	StorageContainer string
	LocalStorageDir  string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// Provider credentials and transport
	ProviderLogin    string
	ProviderPassword string
	ProviderAPIKey   string
	ProviderBaseURL  string
	ProviderTimeout  time.Duration
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	BreakerThreshold int

	// Rate limiting and polling
	MaxConcurrent int
	MinInterval   time.Duration
	PollInterval  time.Duration
	MaxWait       time.Duration

	// Businesses to monitor
	BusinessesFile string
	Businesses     []Business
	ReviewDepth    int

	// Complaints at or above this severity trigger an alert
	UrgentSeverity string
}

// Load loads configuration from environment variables and validates
// everything the bot needs
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadProvider loads the same configuration but only validates the provider
// settings, for one-shot tools that neither schedule nor notify
func LoadProvider() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if err := cfg.validateProvider(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Debug:          getBoolEnv("DEBUG", false),
		ReportSchedule: getEnv("REPORT_SCHEDULE", "weekly"),
		UrgentSchedule: getEnv("URGENT_SCHEDULE", "0 0 */4 * * *"),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "reviews"),
		LocalStorageDir:  getEnv("LOCAL_STORAGE_DIR", "./data"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		ProviderLogin:    getEnv("PROVIDER_LOGIN", ""),
		ProviderPassword: getEnv("PROVIDER_PASSWORD", ""),
		ProviderAPIKey:   getEnv("PROVIDER_API_KEY", ""),
		ProviderBaseURL:  getEnv("PROVIDER_BASE_URL", acquisition.DefaultBaseURL),
		ProviderTimeout:  getMillisEnv("PROVIDER_TIMEOUT_MS", 30000),
		MaxRetries:       getIntEnv("PROVIDER_MAX_RETRIES", 3),
		InitialDelay:     getMillisEnv("RETRY_INITIAL_DELAY_MS", 1000),
		MaxDelay:         getMillisEnv("RETRY_MAX_DELAY_MS", 30000),
		BreakerThreshold: getIntEnv("BREAKER_THRESHOLD", 5),

		MaxConcurrent: getIntEnv("RATE_LIMIT_MAX_CONCURRENT", 2),
		MinInterval:   getMillisEnv("RATE_LIMIT_MIN_INTERVAL_MS", 1000),
		PollInterval:  getMillisEnv("POLL_INTERVAL_MS", 5000),
		MaxWait:       getMillisEnv("POLL_MAX_WAIT_MS", 300000),

		BusinessesFile: getEnv("BUSINESSES_FILE", ""),
		ReviewDepth:    getIntEnv("REVIEW_DEPTH", 100),
		UrgentSeverity: getEnv("URGENT_SEVERITY", models.SeverityHigh),
	}

	businesses, err := loadBusinesses(cfg.BusinessesFile)
	if err != nil {
		return nil, err
	}
	cfg.Businesses = businesses

	return cfg, nil
}

// loadBusinesses reads the YAML businesses file, falling back to the
// single-business environment variables
func loadBusinesses(path string) ([]Business, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read businesses file: %w", err)
		}
		var file businessesFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse businesses file: %w", err)
		}
		for i := range file.Businesses {
			if len(file.Businesses[i].Platforms) == 0 {
				file.Businesses[i].Platforms = getSliceEnv("PLATFORMS", []string{"google"})
			}
		}
		return file.Businesses, nil
	}

	name := getEnv("BUSINESS_NAME", "")
	if name == "" {
		return nil, nil
	}
	return []Business{{
		Name:      name,
		Location:  getEnv("BUSINESS_LOCATION", ""),
		Language:  getEnv("BUSINESS_LANGUAGE", "English"),
		Platforms: getSliceEnv("PLATFORMS", []string{"google"}),
	}}, nil
}

func (c *Config) validate() error {
	if c.ReportSchedule != "daily" && c.ReportSchedule != "weekly" {
		return fmt.Errorf("REPORT_SCHEDULE must be 'daily' or 'weekly'")
	}

	if c.TeamsWebhookURL == "" && c.NotificationEmail == "" {
		return fmt.Errorf("at least one notification method must be configured (TEAMS_WEBHOOK_URL or NOTIFICATION_EMAIL)")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	switch c.UrgentSeverity {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh:
	default:
		return fmt.Errorf("URGENT_SEVERITY must be 'low', 'medium' or 'high'")
	}

	return c.validateProvider()
}

func (c *Config) validateProvider() error {
	if c.ProviderAPIKey == "" && (c.ProviderLogin == "" || c.ProviderPassword == "") {
		return fmt.Errorf("provider credentials are required (PROVIDER_LOGIN and PROVIDER_PASSWORD, or PROVIDER_API_KEY)")
	}

	if c.MaxConcurrent < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX_CONCURRENT must be at least 1")
	}
	if c.MinInterval < 0 || c.PollInterval <= 0 || c.MaxWait <= 0 {
		return fmt.Errorf("rate limit interval must not be negative and poll settings must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("PROVIDER_MAX_RETRIES must not be negative")
	}

	for _, b := range c.Businesses {
		if b.Name == "" {
			return fmt.Errorf("every business needs a name")
		}
		for _, p := range b.Platforms {
			if _, err := acquisition.ParsePlatform(p); err != nil {
				return fmt.Errorf("business %q: %w", b.Name, err)
			}
		}
	}

	return nil
}

// ProviderConfig converts to the acquisition client configuration
func (c *Config) ProviderConfig() acquisition.Config {
	return acquisition.Config{
		Login:            c.ProviderLogin,
		Password:         c.ProviderPassword,
		APIKey:           c.ProviderAPIKey,
		BaseURL:          c.ProviderBaseURL,
		Timeout:          c.ProviderTimeout,
		MaxRetries:       c.MaxRetries,
		InitialDelay:     c.InitialDelay,
		MaxDelay:         c.MaxDelay,
		MaxConcurrent:    c.MaxConcurrent,
		MinInterval:      c.MinInterval,
		PollInterval:     c.PollInterval,
		MaxWait:          c.MaxWait,
		BreakerThreshold: c.BreakerThreshold,
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getMillisEnv(key string, defaultValue int) time.Duration {
	return time.Duration(getIntEnv(key, defaultValue)) * time.Millisecond
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
