package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfreiman/careerlink/internal/orchestrate"
	"github.com/kfreiman/careerlink/internal/polling"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout)
	assert.Equal(t, orchestrate.DefaultLinkEndpoint, cfg.LinkPath)
	assert.Equal(t, orchestrate.DefaultProfileEndpoint, cfg.ProfilePath)
	assert.Equal(t, polling.DefaultRankingPath, cfg.RankingStatusPath)
	assert.Equal(t, polling.DefaultParsingPath, cfg.ParsingStatusPath)
	assert.Equal(t, orchestrate.DefaultAttemptTimeout, cfg.LinkAttemptTimeout)
	assert.Equal(t, orchestrate.DefaultCredentialAttemptTimeout, cfg.CredentialAttemptTimeout)
	assert.Equal(t, orchestrate.DefaultAttemptTimeout, cfg.PollAttemptTimeout)
	assert.False(t, cfg.OAuthConfigured())

	assert.Equal(t, orchestrate.CredentialPolicy, cfg.CredentialPolicy())
	assert.Equal(t, orchestrate.LinkPolicy, cfg.LinkPolicy())
	assert.Equal(t, polling.RankingConfig, cfg.RankingPolling())
	assert.Equal(t, polling.ParsingConfig, cfg.ParsingPolling())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BACKEND_URL", "https://api.example.com")
	t.Setenv("OAUTH_TOKEN_URL", "https://idp.example.com/token")
	t.Setenv("OAUTH_CLIENT_ID", "careerlink")
	t.Setenv("OAUTH_SCOPES", "openid,email")
	t.Setenv("LINK_WINDOW", "45s")
	t.Setenv("RANKING_NOT_STARTED_LIMIT", "0")
	t.Setenv("POLL_ATTEMPT_TIMEOUT", "3s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "https://api.example.com", cfg.BackendURL)
	assert.True(t, cfg.OAuthConfigured())
	assert.Equal(t, []string{"openid", "email"}, cfg.OAuthScopes)
	assert.Equal(t, 45*time.Second, cfg.LinkPolicy().Window)
	assert.Equal(t, 0, cfg.RankingPolling().NotStartedLimit)
	assert.Equal(t, 3*time.Second, cfg.RankingPolling().AttemptTimeout)
	assert.Equal(t, 3*time.Second, cfg.ParsingPolling().AttemptTimeout)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad backend url", env: map[string]string{"BACKEND_URL": "not a url"}},
		{name: "port out of range", env: map[string]string{"PORT": "70000"}},
		{name: "shrinking multiplier", env: map[string]string{"LINK_MULTIPLIER": "0.5"}},
		{name: "cap below initial delay", env: map[string]string{"CREDENTIAL_MAX_DELAY": "100ms"}},
		{name: "ranking path without ref", env: map[string]string{"RANKING_STATUS_PATH": "/api/rankings"}},
		{name: "oauth without client id", env: map[string]string{"OAUTH_TOKEN_URL": "https://idp.example.com/token"}},
		{name: "zero attempts", env: map[string]string{"PARSING_MAX_ATTEMPTS": "0"}},
		{name: "unparseable duration", env: map[string]string{"BACKEND_TIMEOUT": "soon"}},
		{name: "zero credential attempt timeout", env: map[string]string{"CREDENTIAL_ATTEMPT_TIMEOUT": "0s"}},
		{name: "zero poll attempt timeout", env: map[string]string{"POLL_ATTEMPT_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestConfig_Builders(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg = cfg.WithPort(3000).
		WithBackendURL("http://backend:8000").
		WithTokenFile("/var/run/secrets/token").
		WithOAuth("https://idp/token", "id", "secret", "openid")

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "http://backend:8000", cfg.BackendURL)
	assert.Equal(t, "/var/run/secrets/token", cfg.TokenFile)
	assert.Equal(t, []string{"openid"}, cfg.OAuthScopes)
	assert.NoError(t, cfg.Validate())
}

func TestUsage(t *testing.T) {
	usage, err := Usage()
	require.NoError(t, err)
	assert.Contains(t, usage, "BACKEND_URL")
	assert.Contains(t, usage, "RANKING_STATUS_PATH")
	assert.Contains(t, usage, "CREDENTIAL_ATTEMPT_TIMEOUT")
	assert.Contains(t, usage, "Upper bound for one identity provider call")
	assert.Contains(t, usage, "Time between ranking status checks")
}

func TestConfig_EveryKeyDescribed(t *testing.T) {
	typ := reflect.TypeOf(Config{})
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		key, ok := field.Tag.Lookup("env")
		if !ok {
			continue
		}
		assert.NotEmpty(t, field.Tag.Get("env-description"), key)
	}
}
