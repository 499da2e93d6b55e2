// Package redis stores sessions and replay runs in Redis, with optional
// expiration and sorted-set indexes for listing.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/promptloom/pkg/domain"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "promptloom:"

// farFuture is the index score of entries that never expire (2100-01-01).
const farFuture = 4102444800

type config struct {
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures the Redis stores.
type Option func(*config)

// WithTTL sets the expiration for stored entries. Zero means no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithClock overrides the time source used for index expiry.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

func newConfig(opts []Option) config {
	c := config{prefix: DefaultPrefix, now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// expiryScore is the index score after which an entry is considered gone.
func (c config) expiryScore() float64 {
	if c.ttl == 0 {
		return farFuture
	}
	return float64(c.now().Add(c.ttl).Unix())
}

// NewClient builds a go-redis client for addr.
func NewClient(addr, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// SessionStore implements ports.SessionStore using Redis.
type SessionStore struct {
	client *backend.Client
	config
}

// NewSessionStore creates a session store on an existing client.
func NewSessionStore(client *backend.Client, opts ...Option) *SessionStore {
	return &SessionStore{client: client, config: newConfig(opts)}
}

func (s *SessionStore) key(id string) string {
	return s.prefix + "session:" + id
}

func (s *SessionStore) indexKey() string {
	return s.prefix + "session:index"
}

// Save persists the session as JSON and indexes it by expiry.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(sess.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.expiryScore(), Member: sess.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

// Load retrieves the session.
func (s *SessionStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete removes the session and its index entry.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// List prunes expired index entries, then returns the remaining IDs.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	return s.listIndex(ctx, s.client, s.indexKey())
}

// listIndex lazily removes entries whose expiry score has passed.
func (c config) listIndex(ctx context.Context, client *backend.Client, index string) ([]string, error) {
	now := fmt.Sprintf("%d", c.now().Unix())
	if err := client.ZRemRangeByScore(ctx, index, "-inf", now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired entries: %w", err)
	}
	ids, err := client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", index, err)
	}
	return ids, nil
}

// RunStore implements ports.RunStore using Redis.
// Each project keeps a sorted set of its run IDs.
type RunStore struct {
	client *backend.Client
	config
}

// NewRunStore creates a run store on an existing client.
func NewRunStore(client *backend.Client, opts ...Option) *RunStore {
	return &RunStore{client: client, config: newConfig(opts)}
}

func (s *RunStore) key(runID string) string {
	return s.prefix + "run:" + runID
}

func (s *RunStore) indexKey(projectID string) string {
	return s.prefix + "project:" + projectID + ":runs"
}

// Save persists the record and adds it to its project's index.
func (s *RunStore) Save(ctx context.Context, rec domain.RunRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(rec.RunID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(rec.ProjectID), backend.Z{Score: s.expiryScore(), Member: rec.RunID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run to redis: %w", err)
	}
	return nil
}

// Load retrieves a run record.
func (s *RunStore) Load(ctx context.Context, runID string) (domain.RunRecord, error) {
	val, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.RunRecord{}, domain.ErrRunNotFound
		}
		return domain.RunRecord{}, fmt.Errorf("failed to get run from redis: %w", err)
	}

	var rec domain.RunRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return domain.RunRecord{}, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return rec, nil
}

// List loads the project's indexed runs in one MGET and filters them.
func (s *RunStore) List(ctx context.Context, projectID string, filter domain.RunFilter) ([]domain.RunSummary, error) {
	ids, err := s.listIndex(ctx, s.client, s.indexKey(projectID))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.RunSummary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}

	records := make([]domain.RunRecord, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // expired before the index was pruned
		}
		var rec domain.RunRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run: %w", err)
		}
		records = append(records, rec)
	}
	return domain.SelectRuns(records, filter), nil
}
