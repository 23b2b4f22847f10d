package orchestrate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneration(t *testing.T) {
	var g Generation

	captured := g.Current()
	assert.False(t, g.IsStale(captured))

	next := g.Bump()
	assert.Equal(t, captured+1, next)
	assert.True(t, g.IsStale(captured))
	assert.False(t, g.IsStale(next))
}

func TestGeneration_ConcurrentBumps(t *testing.T) {
	var g Generation
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Bump()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), g.Current())
}
