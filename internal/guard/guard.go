// Package guard keeps a checkout session from submitting two orders at once,
// within one process or across replicas sharing Redis.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Guard hands out short-lived exclusive claims on a key
type Guard interface {
	// Acquire claims key for ttl and returns the claim's token. ok is false
	// when the key is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release drops the claim on key only while token still owns it; a
	// claim that expired and was taken by someone else is left alone.
	Release(ctx context.Context, key, token string) error
}

type claim struct {
	token   string
	expires time.Time
}

// MemoryGuard is a Guard for single-instance deployments
type MemoryGuard struct {
	mu    sync.Mutex
	held  map[string]claim
	clock func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		held:  make(map[string]claim),
		clock: time.Now,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	if c, ok := g.held[key]; ok && now.Before(c.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	g.held[key] = claim{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.held[key]; ok && c.token == token {
		delete(g.held, key)
	}
	return nil
}

var _ Guard = (*MemoryGuard)(nil)
