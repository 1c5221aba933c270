package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the state under one key per profile, for workstations shared
// by several operators.
type RedisStore struct {
	client *redis.Client
	key    string
}

// RedisStoreConfig holds configuration for the Redis session backend
type RedisStoreConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Profile  string
}

// KeyPrefix prefixes every session key
const KeyPrefix = "chemstock:session:"

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis for session storage: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.Profile), nil
}

// NewRedisStoreWithClient creates a store with an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, profile string) *RedisStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{
		client: client,
		key:    KeyPrefix + profile,
	}
}

// Key returns the Redis key of this profile
func (r *RedisStore) Key() string {
	return r.key
}

// Read loads the state; a missing key is an empty session
func (r *RedisStore) Read(ctx context.Context) (State, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to read session from Redis: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("failed to decode session from Redis: %w", err)
	}
	return st, nil
}

// Write stores the state; an empty state deletes the key
func (r *RedisStore) Write(ctx context.Context, st State) error {
	if st.IsEmpty() {
		if err := r.client.Del(ctx, r.key).Err(); err != nil {
			return fmt.Errorf("failed to clear session in Redis: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write session to Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
