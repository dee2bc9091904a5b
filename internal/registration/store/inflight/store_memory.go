// Package inflight implements the per-email submission lock.
package inflight

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"vektorkite/pkg/platform/sentinel"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// InMemoryGuard is the single-instance guard. Expired leases are replaced on
// the next Acquire, so a crashed request cannot hold a key past its ttl.
type InMemoryGuard struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

func NewInMemoryGuard() *InMemoryGuard {
	return &InMemoryGuard{leases: make(map[string]lease), now: time.Now}
}

func (g *InMemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if l, ok := g.leases[key]; ok && now.Before(l.expiresAt) {
		return "", sentinel.ErrConflict
	}
	token := uuid.NewString()
	g.leases[key] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

// Release frees key only if token still owns it.
func (g *InMemoryGuard) Release(_ context.Context, key, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.leases[key]; ok && l.token == token {
		delete(g.leases, key)
	}
	return nil
}
