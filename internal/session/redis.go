package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces session keys so RevokeAll and CountActive can scan
// them without touching unrelated data in the same Redis DB.
const keyPrefix = "session:token:"

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 100

// RedisStore implements Store on a Redis-compatible server. Expiry is
// delegated to Redis TTLs, so revocation by timeout needs no sweeper.
type RedisStore struct {
	client *redis.Client
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection before
// returning, so a misconfigured address fails at startup rather than at the
// first login.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis session store: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client, mainly for tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(token string) string {
	return keyPrefix + token
}

func (s *RedisStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) IsValid(ctx context.Context, token string) bool {
	exists, err := s.client.Exists(ctx, key(token)).Result()
	if err != nil {
		// Fail to deny: an unreachable store reads as "not logged in".
		slog.WarnContext(ctx, "Session store read failed, denying token", "error", err)
		return false
	}
	return exists > 0
}

func (s *RedisStore) GetUserID(ctx context.Context, token string) (string, bool) {
	userID, err := s.client.Get(ctx, key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		slog.WarnContext(ctx, "Session store read failed, denying token", "error", err)
		return "", false
	}
	return userID, true
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, key(token)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RedisStore) RevokeAll(ctx context.Context, userID string) (int, error) {
	revoked := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", scanBatch).Result()
		if err != nil {
			return revoked, fmt.Errorf("scan sessions: %w", err)
		}
		for _, k := range keys {
			owner, err := s.client.Get(ctx, k).Result()
			if errors.Is(err, redis.Nil) {
				continue // expired between SCAN and GET
			}
			if err != nil {
				return revoked, fmt.Errorf("read session owner: %w", err)
			}
			if owner != userID {
				continue
			}
			if err := s.client.Del(ctx, k).Err(); err != nil {
				return revoked, fmt.Errorf("revoke session: %w", err)
			}
			revoked++
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	slog.InfoContext(ctx, "Revoked all sessions for user", "user_id", userID, "revoked", revoked)
	return revoked, nil
}

func (s *RedisStore) CountActive(ctx context.Context) (int, error) {
	count := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", scanBatch).Result()
		if err != nil {
			return 0, fmt.Errorf("scan sessions: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
