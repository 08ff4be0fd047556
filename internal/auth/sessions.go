package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/relief-hub/internal/config"
)

// SessionStore remembers logged-out session ids until their tokens expire.
type SessionStore interface {
	Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
	Close() error
}

const revokedPrefix = "session:revoked:"

// RedisSessions shares revocations across API instances.
type RedisSessions struct {
	client *redis.Client
	clock  clockwork.Clock
}

func NewRedisSessions(ctx context.Context, cfg config.RedisConfig) (*RedisSessions, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisSessions{client: client, clock: clockwork.NewRealClock()}, nil
}

func (s *RedisSessions) Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedPrefix+sessionID, "1", ttl).Err()
}

func (s *RedisSessions) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisSessions) Close() error {
	return s.client.Close()
}

// MemorySessions is the single-instance fallback when redis is not configured.
type MemorySessions struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	clock   clockwork.Clock
}

func NewMemorySessions(clock clockwork.Clock) *MemorySessions {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemorySessions{revoked: make(map[string]time.Time), clock: clock}
}

func (s *MemorySessions) Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
		}
	}
	if expiresAt.After(now) {
		s.revoked[sessionID] = expiresAt
	}
	return nil
}

func (s *MemorySessions) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.revoked[sessionID]
	return ok && exp.After(s.clock.Now()), nil
}

func (s *MemorySessions) Close() error {
	return nil
}
