package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type SecretKey string

// SecretOpenAIKey is the conventional environment name the OpenAI SDK
// uses; Load falls back to it when the prefixed variable is unset.
const SecretOpenAIKey SecretKey = "OPENAI_API_KEY"

type Config struct {
	// App
	Env           string        `split_words:"true" default:"prod" validate:"oneof=dev staging prod"`
	LogLevel      string        `split_words:"true" default:"info" validate:"oneof=debug info warn error"`
	HTTPAddr      string        `split_words:"true" default:":8080" validate:"required"`
	ShutdownGrace time.Duration `split_words:"true" default:"15s" validate:"gt=0"`

	// GitHub auth. A personal access token is enough for most deployments;
	// the app-installation trio takes precedence when all three are set.
	GithubToken          string `envconfig:"GITHUB_TOKEN"`
	GithubPrivateKey     string `envconfig:"APP_GITHUB_PRIVATE_KEY"`
	GithubClientID       string `split_words:"true"`
	GithubInstallationID int64  `split_words:"true"`

	// GithubBaseURL overrides the API root, for GitHub Enterprise hosts.
	GithubBaseURL string `split_words:"true"`

	// OPENAI (optional, enables the activity digest)
	OpenaiApiKey string `split_words:"true"`

	// Redis (optional, enables the shared result cache)
	RedisURL         string        `split_words:"true"`
	RedisAddr        string        `split_words:"true"`
	RedisPassword    string        `split_words:"true"`
	RedisDB          int           `split_words:"true" default:"0"`
	RedisConnTimeout time.Duration `split_words:"true" default:"3s" validate:"gt=0"`
	RedisCacheTTL    time.Duration `split_words:"true" default:"15m" validate:"gt=0"`

	// Performance tuning
	GithubConcurrency    int           `split_words:"true" default:"10" validate:"gt=0"`
	GithubRateLimit      int           `split_words:"true" default:"80" validate:"gt=0"`
	OpenaiRateLimit      int           `split_words:"true" default:"50" validate:"gt=0"`
	CacheSize            int           `split_words:"true" default:"1000" validate:"gt=0"`
	CacheTTL             time.Duration `split_words:"true" default:"15m" validate:"gt=0"`
	CacheCleanupInterval time.Duration `split_words:"true" default:"5m" validate:"gt=0"`
	HTTPClientTimeout    time.Duration `split_words:"true" default:"30s" validate:"gt=0"`
}

// HasGithubApp reports whether the GitHub App installation credentials are
// fully configured.
func (c *Config) HasGithubApp() bool {
	return c.GithubPrivateKey != "" && c.GithubClientID != "" && c.GithubInstallationID != 0
}

// HasRedis reports whether any Redis connection settings were provided.
func (c *Config) HasRedis() bool {
	return c.RedisURL != "" || c.RedisAddr != ""
}

type Loader struct {
	Prefix   string
	Validate *validator.Validate
}
