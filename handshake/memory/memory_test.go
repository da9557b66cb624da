package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bai-labs/figmaproxy/handshake"
)

func TestConsume_ReturnsInsertedSession(t *testing.T) {
	repo := NewMemoryHandshakeRepo()
	ctx := context.Background()

	session := handshake.Session{
		State:     "state1",
		SessionId: "session1",
		Verifier:  "verifier1",
		CreatedAt: time.Now(),
	}
	assert.NoError(t, repo.Insert(ctx, session))

	got, err := repo.Consume(ctx, "state1")
	assert.NoError(t, err)
	assert.Equal(t, session.Verifier, got.Verifier)
	assert.Equal(t, session.SessionId, got.SessionId)
}

func TestConsume_OnlyOnce(t *testing.T) {
	repo := NewMemoryHandshakeRepo()
	ctx := context.Background()

	assert.NoError(t, repo.Insert(ctx, handshake.Session{
		State:     "state1",
		Verifier:  "verifier1",
		CreatedAt: time.Now(),
	}))

	_, err := repo.Consume(ctx, "state1")
	assert.NoError(t, err)

	_, err = repo.Consume(ctx, "state1")
	assert.ErrorIs(t, err, handshake.ErrNotFound)
}

func TestConsume_UnknownState(t *testing.T) {
	repo := NewMemoryHandshakeRepo()

	_, err := repo.Consume(context.Background(), "never-inserted")
	assert.ErrorIs(t, err, handshake.ErrNotFound)
}

func TestConsume_ExpiredSession(t *testing.T) {
	repo := NewMemoryHandshakeRepo()
	ctx := context.Background()

	assert.NoError(t, repo.Insert(ctx, handshake.Session{
		State:     "state1",
		Verifier:  "verifier1",
		CreatedAt: time.Now().Add(-handshake.TTL - time.Minute),
	}))

	_, err := repo.Consume(ctx, "state1")
	assert.ErrorIs(t, err, handshake.ErrNotFound)
}

func TestConsume_Concurrent(t *testing.T) {
	repo := NewMemoryHandshakeRepo()
	ctx := context.Background()

	assert.NoError(t, repo.Insert(ctx, handshake.Session{
		State:     "state1",
		Verifier:  "verifier1",
		CreatedAt: time.Now(),
	}))

	const goroutines = 32
	var wg sync.WaitGroup
	successes := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Consume(ctx, "state1"); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	assert.Len(t, successes, 1)
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	repo := NewMemoryHandshakeRepo()
	ctx := context.Background()
	now := time.Now()

	assert.NoError(t, repo.Insert(ctx, handshake.Session{State: "fresh", CreatedAt: now}))
	assert.NoError(t, repo.Insert(ctx, handshake.Session{State: "stale1", CreatedAt: now.Add(-handshake.TTL - time.Second)}))
	assert.NoError(t, repo.Insert(ctx, handshake.Session{State: "stale2", CreatedAt: now.Add(-time.Hour)}))

	removed, err := repo.Sweep(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = repo.Consume(ctx, "fresh")
	assert.NoError(t, err)
	_, err = repo.Consume(ctx, "stale1")
	assert.ErrorIs(t, err, handshake.ErrNotFound)
}
