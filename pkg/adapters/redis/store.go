package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/schema"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "flowtalk:flow:"

// farFuture scores index entries of flows that never expire.
const farFuture = 4102444800 // 2100-01-01

// Store implements ports.FlowStore using Redis. Each flow is a JSON document
// under prefix+name; a sorted set at prefix+"index" scored by expiry lists them.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration of saved flows.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New connects to a Redis server.
func New(address, password string, db int, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a store over an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(name string) string { return s.prefix + name }

func (s *Store) indexKey() string { return s.prefix + "index" }

// Save stores flow as JSON and indexes it.
func (s *Store) Save(ctx context.Context, name string, flow *domain.Flow) error {
	if name == "" {
		return fmt.Errorf("flow name cannot be empty")
	}
	data, err := schema.Encode(flow, schema.FormatJSON)
	if err != nil {
		return fmt.Errorf("failed to encode flow: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(name), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: name})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load reads and decodes the flow stored under name.
func (s *Store) Load(ctx context.Context, name string) (*domain.Flow, error) {
	val, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	flow, err := schema.Decode(val, schema.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding flow %s: %w", name, err)
	}
	return flow, nil
}

// Delete removes the flow and its index entry.
func (s *Store) Delete(ctx context.Context, name string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(name))
	pipe.ZRem(ctx, s.indexKey(), name)
	_, err := pipe.Exec(ctx)
	return err
}

// List prunes expired index entries, then returns the rest in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired flows: %w", err)
	}

	// Members share a score unless TTLs differ, so sort explicitly.
	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
