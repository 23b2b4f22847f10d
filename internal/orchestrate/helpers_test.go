package orchestrate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/kfreiman/careerlink/internal/backend"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// driveClock steps fc whenever something is waiting on it, until done is
// closed.
func driveClock(t *testing.T, fc *testingclock.FakeClock, step time.Duration, done <-chan struct{}) {
	t.Helper()
	limit := time.Now().Add(10 * time.Second)
	for {
		select {
		case <-done:
			return
		default:
		}
		if time.Now().After(limit) {
			t.Fatal("timed out driving fake clock")
		}
		if fc.HasWaiters() {
			fc.Step(step)
			continue
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// mockCredentialSource is a testify mock of CredentialSource
type mockCredentialSource struct {
	mock.Mock
}

func (m *mockCredentialSource) Credential(ctx context.Context, opts CredentialOptions) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

// gatedSource blocks forced credential calls until the matching gate is
// released; non-forced calls return immediately.
type gatedSource struct {
	mu    sync.Mutex
	gates []chan string
	calls int
}

func newGatedSource(n int) *gatedSource {
	s := &gatedSource{}
	for i := 0; i < n; i++ {
		s.gates = append(s.gates, make(chan string, 1))
	}
	return s
}

func (s *gatedSource) Credential(ctx context.Context, opts CredentialOptions) (string, error) {
	if !opts.ForceRefresh {
		return "", errors.New("no cached credential")
	}
	s.mu.Lock()
	gate := s.gates[s.calls]
	s.calls++
	s.mu.Unlock()
	// Deliberately ignores ctx: a late provider response after supersession.
	return <-gate, nil
}

func (s *gatedSource) release(i int, credential string) {
	s.gates[i] <- credential
}

func (s *gatedSource) forcedCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeBackend records requests and answers with handler.
type fakeBackend struct {
	mu      sync.Mutex
	reqs    []backend.Request
	handler func(ctx context.Context, n int, req backend.Request) (*backend.Response, error)
}

func (f *fakeBackend) Send(ctx context.Context, req backend.Request) (*backend.Response, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	n := len(f.reqs)
	f.mu.Unlock()
	return f.handler(ctx, n, req)
}

func (f *fakeBackend) requests() []backend.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backend.Request, len(f.reqs))
	copy(out, f.reqs)
	return out
}

func (f *fakeBackend) countEndpoint(endpoint string) int {
	n := 0
	for _, r := range f.requests() {
		if r.Endpoint == endpoint {
			n++
		}
	}
	return n
}

func okResponse() *backend.Response {
	return &backend.Response{Status: 200, JSON: map[string]any{}}
}

// recorder collects snapshots delivered to a subscriber.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.snaps))
	copy(out, r.snaps)
	return out
}

func (r *recorder) phases() []Phase {
	var out []Phase
	for _, s := range r.all() {
		out = append(out, s.Phase)
	}
	return out
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}
