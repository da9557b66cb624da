package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bai-labs/figmaproxy/handshake"
)

// RedisHandshakeRepo backs the handshake store with Redis so multiple
// instances can share in-flight login attempts. Expiry is native (SET
// with EX) and consume is a single GETDEL, which keeps the one-time
// guarantee without client-side locking.
type RedisHandshakeRepo struct {
	client redis.UniversalClient
}

func NewRedisHandshakeRepo(ctx context.Context, devMode bool, redisEndpoint string) (*RedisHandshakeRepo, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisHandshakeRepo{client: client}, nil
}

func buildStateKey(state string) string {
	return "handshake:" + state
}

func (r *RedisHandshakeRepo) Insert(ctx context.Context, session handshake.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, buildStateKey(session.State), payload, handshake.TTL).Err()
}

func (r *RedisHandshakeRepo) Consume(ctx context.Context, state string) (handshake.Session, error) {
	payload, err := r.client.GetDel(ctx, buildStateKey(state)).Bytes()
	if err == redis.Nil {
		return handshake.Session{}, handshake.ErrNotFound
	}
	if err != nil {
		return handshake.Session{}, err
	}

	var session handshake.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return handshake.Session{}, err
	}
	return session, nil
}

// Sweep is a no-op: Redis expires handshake keys itself.
func (r *RedisHandshakeRepo) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
