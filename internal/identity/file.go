package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"k8s.io/utils/clock"

	"github.com/kfreiman/careerlink/internal/orchestrate"
)

// DefaultCacheFor is how long a non-forced read reuses the last token.
const DefaultCacheFor = time.Minute

// FileSource reads a credential from a token file that is rotated in place,
// such as a projected service account token.
type FileSource struct {
	fs       afero.Fs
	path     string
	cacheFor time.Duration
	clock    clock.Clock

	mu     sync.Mutex
	cached string
	readAt time.Time
}

// NewFileSource creates a source reading path on fs.
func NewFileSource(fs afero.Fs, path string) *FileSource {
	return &FileSource{
		fs:       fs,
		path:     path,
		cacheFor: DefaultCacheFor,
		clock:    clock.RealClock{},
	}
}

// WithCacheFor sets how long non-forced reads reuse the last token
func (s *FileSource) WithCacheFor(d time.Duration) *FileSource {
	s.cacheFor = d
	return s
}

// WithClock sets the clock used for cache expiry
func (s *FileSource) WithClock(clk clock.Clock) *FileSource {
	s.clock = clk
	return s
}

// Credential re-reads the file on forced calls or when the cached token is
// older than the cache window.
func (s *FileSource) Credential(ctx context.Context, opts orchestrate.CredentialOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !opts.ForceRefresh && s.cached != "" && s.clock.Since(s.readAt) < s.cacheFor {
		return s.cached, nil
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return "", fmt.Errorf("read token file %s: %w", s.path, err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", orchestrate.ErrEmptyCredential
	}

	s.cached = token
	s.readAt = s.clock.Now()
	return token, nil
}
