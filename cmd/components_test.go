package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfreiman/careerlink/internal/config"
	"github.com/kfreiman/careerlink/internal/identity"
	"github.com/kfreiman/careerlink/internal/orchestrate"
	"github.com/kfreiman/careerlink/internal/polling"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func testConfig(t *testing.T, backendURL string) config.Config {
	t.Helper()
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	cfg = cfg.WithBackendURL(backendURL).WithTokenFile("/var/run/secrets/token")
	cfg.CredentialWindow = 200 * time.Millisecond
	cfg.CredentialInitialDelay = 10 * time.Millisecond
	cfg.CredentialMaxDelay = 20 * time.Millisecond
	cfg.LinkWindow = 200 * time.Millisecond
	cfg.LinkInitialDelay = 10 * time.Millisecond
	cfg.LinkMaxDelay = 20 * time.Millisecond
	cfg.RankingInterval = 5 * time.Millisecond
	cfg.ParsingInterval = 5 * time.Millisecond
	return cfg
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewCredentialSource(t *testing.T) {
	base := config.Config{}

	tests := []struct {
		name    string
		cfg     config.Config
		want    any
		wantErr error
	}{
		{
			name: "oauth wins over token file",
			cfg:  base.WithOAuth("https://idp.example.com/token", "careerlink", "s3cret").WithTokenFile("/tmp/token"),
			want: &identity.OAuth2Source{},
		},
		{
			name: "token file",
			cfg:  base.WithTokenFile("/tmp/token"),
			want: &identity.FileSource{},
		},
		{
			name:    "nothing configured",
			cfg:     base,
			wantErr: errNoCredentialSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := newCredentialSource(tt.cfg, afero.NewMemMapFs(), discardLogger())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, src)
		})
	}
}

func TestRunLink_FromTokenClaims(t *testing.T) {
	var (
		mu         sync.Mutex
		linkBody   map[string]any
		authHeader string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/sync", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		authHeader = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&linkBody)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	token := signedToken(t, jwt.MapClaims{"sub": "uid-123", "email": "jane@example.com", "name": "Jane Doe"})

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, cfg.TokenFile, []byte(token+"\n"), 0o600))

	core, err := newComponents(cfg, fs, discardLogger())
	require.NoError(t, err)

	who, err := resolveIdentity(context.Background(), core.credentials)
	require.NoError(t, err)
	assert.Equal(t, orchestrate.Identity{ID: "uid-123", Email: "jane@example.com", DisplayName: "Jane Doe"}, who)

	var out bytes.Buffer
	final, err := runLink(context.Background(), core.sync, who, &out)
	require.NoError(t, err)

	assert.Equal(t, orchestrate.PhaseSucceeded, final.Phase)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer "+token, authHeader)
	assert.Equal(t, map[string]any{"uid": "uid-123", "email": "jane@example.com"}, linkBody)
	assert.Equal(t,
		"phase: acquiring_token\nphase: linking_backend\nphase: succeeded\n"+orchestrate.MessageSucceeded+"\n",
		out.String())
}

func TestRunLink_Failure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/sync", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, cfg.TokenFile, []byte("opaque-token"), 0o600))

	core, err := newComponents(cfg, fs, discardLogger())
	require.NoError(t, err)

	var out bytes.Buffer
	final, err := runLink(context.Background(), core.sync, orchestrate.Identity{ID: "uid-123"}, &out)
	require.NoError(t, err)

	assert.Equal(t, orchestrate.PhaseFailed, final.Phase)
	assert.Equal(t, orchestrate.PhaseSync, final.FailedPhase)
	assert.Contains(t, out.String(), orchestrate.MessageSyncFailed)
}

func TestAwaitAndPrint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs/job-1/rankings/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"completed","rankings":[{"candidate_id":"c-1","score":0.9,"rank":1}]}`))
	})
	mux.HandleFunc("/api/resumes/res-1/parse/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.ParsingMaxAttempts = 3
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, cfg.TokenFile, []byte("opaque-token"), 0o600))

	core, err := newComponents(cfg, fs, discardLogger())
	require.NoError(t, err)

	t.Run("ranking completed", func(t *testing.T) {
		var out bytes.Buffer
		outcome, err := awaitAndPrint(context.Background(), core.ranking, "job-1", &out)
		require.NoError(t, err)
		assert.Equal(t, polling.StateCompleted, outcome)
		assert.Contains(t, out.String(), "completed after 1 attempts")
		assert.Contains(t, out.String(), `"candidate_id": "c-1"`)
	})

	t.Run("parsing times out", func(t *testing.T) {
		var out bytes.Buffer
		outcome, err := awaitAndPrint(context.Background(), core.parsing, "res-1", &out)
		require.NoError(t, err)
		assert.Equal(t, polling.StateTimedOut, outcome)
		assert.Contains(t, out.String(), "timed_out after 3 attempts")
		assert.Contains(t, out.String(), polling.MessageTimedOut)
	})
}
