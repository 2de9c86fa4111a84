// Package redis persists sessions in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/mnemo/pkg/session"
)

// Config holds configuration for the Redis session store.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Namespace prefixes every key. Defaults to "mnemo".
	Namespace string

	// TTL expires stored sessions. Zero keeps them forever.
	TTL time.Duration
}

// Store implements session.Store.
type Store struct {
	client    goredis.UniversalClient
	namespace string
	ttl       time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client goredis.UniversalClient, cfg Config) *Store {
	if cfg.Namespace == "" {
		cfg.Namespace = "mnemo"
	}
	return &Store{client: client, namespace: cfg.Namespace, ttl: cfg.TTL}
}

func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(sess.ID), data, s.ttl)
	pipe.Set(ctx, s.currentKey(), sess.ID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *Store) Current(ctx context.Context) (*session.Session, error) {
	id, err := s.client.Get(ctx, s.currentKey()).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading current session: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &sess, nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) sessionKey(id string) string {
	return s.namespace + ":session:" + id
}

func (s *Store) currentKey() string {
	return s.namespace + ":session:current"
}
