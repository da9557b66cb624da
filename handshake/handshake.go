package handshake

import (
	"context"
	"errors"
	"time"
)

// TTL bounds how long a login attempt may sit between the redirect to
// Figma and the callback.
const TTL = 10 * time.Minute

// Session links an OAuth state nonce to the PKCE verifier generated for
// one login attempt. Keyed by State; consumed exactly once. There is no
// separate lookup by SessionId: the callback only ever carries the
// state, so the id is kept on the record for log correlation only.
type Session struct {
	State     string
	SessionId string
	Verifier  string
	CreatedAt time.Time
}

// Repo stores in-flight handshake sessions. Consume is one-time: two
// concurrent calls with the same state must not both succeed.
type Repo interface {
	Insert(ctx context.Context, session Session) error
	Consume(ctx context.Context, state string) (Session, error)
	// Sweep drops sessions older than TTL and returns how many were
	// removed. Implementations with native expiry may make it a no-op.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

var ErrNotFound = errors.New("handshake session not found")
