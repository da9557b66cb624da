package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bai-labs/figmaproxy/handshake"
)

// MemoryHandshakeRepo keeps handshake sessions in a mutex-guarded map.
// Suitable for single-instance deployments; sweep cost is O(live
// entries), which stays small because entries live at most ten minutes.
type MemoryHandshakeRepo struct {
	mu       sync.Mutex
	sessions map[string]handshake.Session
}

func NewMemoryHandshakeRepo() *MemoryHandshakeRepo {
	return &MemoryHandshakeRepo{
		sessions: make(map[string]handshake.Session),
	}
}

func (r *MemoryHandshakeRepo) Insert(ctx context.Context, session handshake.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.State] = session
	return nil
}

// Consume looks up by state and removes the entry under the same lock,
// so a replayed callback with the same state always fails.
func (r *MemoryHandshakeRepo) Consume(ctx context.Context, state string) (handshake.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[state]
	if !ok {
		return handshake.Session{}, handshake.ErrNotFound
	}
	delete(r.sessions, state)

	if time.Since(session.CreatedAt) > handshake.TTL {
		return handshake.Session{}, handshake.ErrNotFound
	}
	return session, nil
}

func (r *MemoryHandshakeRepo) Sweep(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for state, session := range r.sessions {
		if now.Sub(session.CreatedAt) > handshake.TTL {
			delete(r.sessions, state)
			removed++
		}
	}
	return removed, nil
}
