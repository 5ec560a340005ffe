package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"retail-pos/cart"
	models "retail-pos/model"

	"github.com/go-redis/redis/v8"
)

// DefaultNamespace prefixes every session key.
const DefaultNamespace = "pos:sessions"

// RedisStore keeps sessions in Redis with a sliding TTL, so open carts
// survive a restart of the API process. Writes to one session are only
// serialized within a process; a register must talk to a single instance.
type RedisStore struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisStore parses a redis:// URL and checks the server is reachable.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(client, DefaultNamespace, ttl), nil
}

func NewRedisStoreWithClient(client *redis.Client, namespace string, ttl time.Duration) *RedisStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisStore{client: client, namespace: namespace, ttl: ttl}
}

func (s *RedisStore) key(id string) string { return s.namespace + ":" + id }

func (s *RedisStore) Save(ctx context.Context, sess *cart.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), b, s.ttl).Err(); err != nil {
		return models.NewOpError("session.Save", "session", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*cart.Session, error) {
	b, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, models.NewOpError("session.Load", "session", err)
	}
	return decode(id, b)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return models.NewOpError("session.Delete", "session", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
