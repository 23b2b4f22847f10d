package orchestrate

import "sync/atomic"

// Generation is a monotonically increasing counter used to detect stale
// asynchronous work.
//
// An operation captures Current() when it starts. Before applying any
// result it must check IsStale with the captured value; once the owner has
// called Bump (new attempt started, or the owner was disposed) the
// operation's results are discarded without further side effects.
//
// Thread-safety: Generation is safe for concurrent use.
type Generation struct {
	n atomic.Int64
}

// Current returns the live generation.
func (g *Generation) Current() int64 {
	return g.n.Load()
}

// Bump advances the generation, invalidating all work captured before the
// call, and returns the new value.
func (g *Generation) Bump() int64 {
	return g.n.Add(1)
}

// IsStale reports whether work captured at generation captured has been
// superseded.
func (g *Generation) IsStale(captured int64) bool {
	return g.n.Load() != captured
}
