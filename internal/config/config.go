// Package config loads careerlink settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/kfreiman/careerlink/internal/orchestrate"
	"github.com/kfreiman/careerlink/internal/polling"
)

// Config holds the configuration for the server and CLI commands
type Config struct {
	Port int `env:"PORT" env-default:"8080" env-description:"HTTP server port" validate:"min=1,max=65535"`

	BackendURL        string        `env:"BACKEND_URL" env-default:"http://localhost:8000" env-description:"Career platform API base URL" validate:"required,url"`
	BackendTimeout    time.Duration `env:"BACKEND_TIMEOUT" env-default:"30s" env-description:"Upper bound for one backend HTTP exchange" validate:"gt=0"`
	LinkPath          string        `env:"LINK_PATH" env-default:"/api/auth/sync" env-description:"Endpoint receiving the account link request" validate:"required,startswith=/"`
	ProfilePath       string        `env:"PROFILE_PATH" env-default:"/api/users/me" env-description:"Endpoint receiving the profile name patch" validate:"required,startswith=/"`
	HealthPath        string        `env:"HEALTH_PATH" env-default:"/health" env-description:"Backend health endpoint probed by readiness" validate:"required,startswith=/"`
	RankingStatusPath string        `env:"RANKING_STATUS_PATH" env-default:"/api/jobs/{ref}/rankings/status" env-description:"Ranking status endpoint, {ref} is the job id" validate:"required,contains={ref}"`
	ParsingStatusPath string        `env:"PARSING_STATUS_PATH" env-default:"/api/resumes/{ref}/parse/status" env-description:"Parsing status endpoint, {ref} is the resume id" validate:"required,contains={ref}"`

	OAuthTokenURL     string   `env:"OAUTH_TOKEN_URL" env-description:"Identity provider token endpoint" validate:"omitempty,url"`
	OAuthClientID     string   `env:"OAUTH_CLIENT_ID" env-description:"OAuth2 client id" validate:"required_with=OAuthTokenURL"`
	OAuthClientSecret string   `env:"OAUTH_CLIENT_SECRET" env-description:"OAuth2 client secret"`
	OAuthScopes       []string `env:"OAUTH_SCOPES" env-separator:"," env-description:"Comma separated OAuth2 scopes"`
	TokenFile         string   `env:"TOKEN_FILE" env-description:"Rotating token file used when no OAuth2 provider is configured"`

	CredentialWindow         time.Duration `env:"CREDENTIAL_WINDOW" env-default:"20s" env-description:"Total time allowed to obtain a fresh credential" validate:"gt=0"`
	CredentialInitialDelay   time.Duration `env:"CREDENTIAL_INITIAL_DELAY" env-default:"500ms" env-description:"Wait after the first failed credential attempt" validate:"gt=0"`
	CredentialMultiplier     float64       `env:"CREDENTIAL_MULTIPLIER" env-default:"1.5" env-description:"Growth factor of the credential retry wait" validate:"gte=1"`
	CredentialMaxDelay       time.Duration `env:"CREDENTIAL_MAX_DELAY" env-default:"3s" env-description:"Cap on the credential retry wait" validate:"gtefield=CredentialInitialDelay"`
	CredentialAttemptTimeout time.Duration `env:"CREDENTIAL_ATTEMPT_TIMEOUT" env-default:"5s" env-description:"Upper bound for one identity provider call" validate:"gt=0"`

	LinkWindow         time.Duration `env:"LINK_WINDOW" env-default:"20s" env-description:"Total time allowed to link the backend account" validate:"gt=0"`
	LinkInitialDelay   time.Duration `env:"LINK_INITIAL_DELAY" env-default:"900ms" env-description:"Wait after the first failed link attempt" validate:"gt=0"`
	LinkMultiplier     float64       `env:"LINK_MULTIPLIER" env-default:"1.7" env-description:"Growth factor of the link retry wait" validate:"gte=1"`
	LinkMaxDelay       time.Duration `env:"LINK_MAX_DELAY" env-default:"5s" env-description:"Cap on the link retry wait" validate:"gtefield=LinkInitialDelay"`
	LinkAttemptTimeout time.Duration `env:"LINK_ATTEMPT_TIMEOUT" env-default:"10s" env-description:"Upper bound for one link attempt, credential refresh included" validate:"gt=0"`

	RankingInterval        time.Duration `env:"RANKING_INTERVAL" env-default:"2s" env-description:"Time between ranking status checks" validate:"gt=0"`
	RankingMaxAttempts     int           `env:"RANKING_MAX_ATTEMPTS" env-default:"30" env-description:"Ranking status checks before the session times out" validate:"min=1"`
	RankingNotStartedLimit int           `env:"RANKING_NOT_STARTED_LIMIT" env-default:"5" env-description:"Consecutive not started answers that end a ranking session, 0 disables" validate:"min=0"`

	ParsingInterval    time.Duration `env:"PARSING_INTERVAL" env-default:"1500ms" env-description:"Time between parsing status checks" validate:"gt=0"`
	ParsingMaxAttempts int           `env:"PARSING_MAX_ATTEMPTS" env-default:"20" env-description:"Parsing status checks before the session times out" validate:"min=1"`

	PollAttemptTimeout time.Duration `env:"POLL_ATTEMPT_TIMEOUT" env-default:"10s" env-description:"Upper bound for one status check, credential lookup included" validate:"gt=0"`
}

// LoadConfig loads configuration from environment variables and validates it
func LoadConfig() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Usage describes every environment variable.
func Usage() (string, error) {
	return cleanenv.GetDescription(&Config{}, nil)
}

// OAuthConfigured reports whether an OAuth2 provider is set.
func (c Config) OAuthConfigured() bool {
	return c.OAuthTokenURL != ""
}

// CredentialPolicy is the retry schedule for credential acquisition.
func (c Config) CredentialPolicy() orchestrate.BackoffPolicy {
	return orchestrate.BackoffPolicy{
		Window:       c.CredentialWindow,
		InitialDelay: c.CredentialInitialDelay,
		Multiplier:   c.CredentialMultiplier,
		MaxDelay:     c.CredentialMaxDelay,
	}
}

// LinkPolicy is the retry schedule for the backend link.
func (c Config) LinkPolicy() orchestrate.BackoffPolicy {
	return orchestrate.BackoffPolicy{
		Window:       c.LinkWindow,
		InitialDelay: c.LinkInitialDelay,
		Multiplier:   c.LinkMultiplier,
		MaxDelay:     c.LinkMaxDelay,
	}
}

// RankingPolling bounds ranking sessions.
func (c Config) RankingPolling() polling.Config {
	return polling.Config{
		Interval:        c.RankingInterval,
		MaxAttempts:     c.RankingMaxAttempts,
		NotStartedLimit: c.RankingNotStartedLimit,
		AttemptTimeout:  c.PollAttemptTimeout,
	}
}

// ParsingPolling bounds parsing sessions.
func (c Config) ParsingPolling() polling.Config {
	return polling.Config{
		Interval:       c.ParsingInterval,
		MaxAttempts:    c.ParsingMaxAttempts,
		AttemptTimeout: c.PollAttemptTimeout,
	}
}

// WithPort sets the server port
func (c Config) WithPort(port int) Config {
	c.Port = port
	return c
}

// WithBackendURL sets the backend base URL
func (c Config) WithBackendURL(url string) Config {
	c.BackendURL = url
	return c
}

// WithTokenFile sets the rotating token file
func (c Config) WithTokenFile(path string) Config {
	c.TokenFile = path
	return c
}

// WithOAuth sets the OAuth2 client-credentials provider
func (c Config) WithOAuth(tokenURL, clientID, clientSecret string, scopes ...string) Config {
	c.OAuthTokenURL = tokenURL
	c.OAuthClientID = clientID
	c.OAuthClientSecret = clientSecret
	c.OAuthScopes = scopes
	return c
}
