package cmd

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/kfreiman/careerlink/internal/backend"
	"github.com/kfreiman/careerlink/internal/config"
	"github.com/kfreiman/careerlink/internal/identity"
	"github.com/kfreiman/careerlink/internal/orchestrate"
	"github.com/kfreiman/careerlink/internal/polling"
	"github.com/kfreiman/careerlink/internal/telemetry"
)

// errNoCredentialSource is returned when neither OAuth2 nor a token file is
// configured.
var errNoCredentialSource = errors.New("no credential source configured: set OAUTH_TOKEN_URL or TOKEN_FILE")

// components is the orchestration core wired from configuration
type components struct {
	backend     *backend.HTTPClient
	credentials orchestrate.CredentialSource
	sync        *orchestrate.SyncOrchestrator
	ranking     *polling.Tracker[polling.RankingResult]
	parsing     *polling.Tracker[polling.ParsedResume]
	registry    *prometheus.Registry
}

// newCredentialSource picks the identity provider: OAuth2 client
// credentials when configured, otherwise the rotating token file.
func newCredentialSource(cfg config.Config, fs afero.Fs, logger *slog.Logger) (orchestrate.CredentialSource, error) {
	switch {
	case cfg.OAuthConfigured():
		return identity.NewOAuth2Source(identity.OAuth2Config{
			TokenURL:     cfg.OAuthTokenURL,
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			Scopes:       cfg.OAuthScopes,
		}).WithLogger(logger), nil
	case cfg.TokenFile != "":
		return identity.NewFileSource(fs, cfg.TokenFile), nil
	default:
		return nil, errNoCredentialSource
	}
}

// newComponents wires the orchestrators and trackers for cfg
func newComponents(cfg config.Config, fs afero.Fs, logger *slog.Logger) (*components, error) {
	credentials, err := newCredentialSource(cfg, fs, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	client := backend.NewHTTPClient(cfg.BackendURL, cfg.BackendTimeout).WithLogger(logger)

	acquirer := orchestrate.NewCredentialAcquirer(credentials).
		WithPolicy(cfg.CredentialPolicy()).
		WithAttemptTimeout(cfg.CredentialAttemptTimeout).
		WithLogger(logger).
		WithMetrics(metrics)

	linker := orchestrate.NewBackendLinker(orchestrate.LinkerConfig{
		Backend:         client,
		Credentials:     credentials,
		Policy:          cfg.LinkPolicy(),
		AttemptTimeout:  cfg.LinkAttemptTimeout,
		LinkEndpoint:    cfg.LinkPath,
		ProfileEndpoint: cfg.ProfilePath,
		Logger:          logger,
		Metrics:         metrics,
	})

	sync := orchestrate.NewSyncOrchestrator(orchestrate.SyncConfig{
		Acquirer: acquirer,
		Linker:   linker,
		Logger:   logger,
		Metrics:  metrics,
	})

	ranking := polling.NewRankingTracker(polling.TrackerConfig{
		Backend:      client,
		Credentials:  credentials,
		PathTemplate: cfg.RankingStatusPath,
		Config:       cfg.RankingPolling(),
		Logger:       logger,
		Metrics:      metrics,
	})

	parsing := polling.NewParsingTracker(polling.TrackerConfig{
		Backend:      client,
		Credentials:  credentials,
		PathTemplate: cfg.ParsingStatusPath,
		Config:       cfg.ParsingPolling(),
		Logger:       logger,
		Metrics:      metrics,
	})

	return &components{
		backend:     client,
		credentials: credentials,
		sync:        sync,
		ranking:     ranking,
		parsing:     parsing,
		registry:    registry,
	}, nil
}
