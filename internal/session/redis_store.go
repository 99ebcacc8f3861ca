package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// getter is satisfied by both a client and a WATCH transaction
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// maxUpdateRetries bounds the WATCH/MULTI loop in RedisStore.Update
const maxUpdateRetries = 10

// RedisStore keeps one key per session and lets Redis expire them natively.
// Its own clock is still checked on every read so that Get never returns an
// entry the file store would consider expired.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	opts   Options
}

// DialRedis connects to addr and pings it before returning
func DialRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session: redis ping %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisStore creates a Redis-backed session store
func NewRedisStore(client redis.UniversalClient, opts Options) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:",
		opts:   opts.withDefaults(),
	}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) now() time.Time {
	return time.UnixMilli(r.opts.Now().UnixMilli())
}

// Set creates or replaces the entry for id
func (r *RedisStore) Set(ctx context.Context, id string, data map[string]any, ttl time.Duration) (*Entry, error) {
	payload, err := normalizePayload(data)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = r.opts.DefaultTTL
	}

	now := r.now()
	entry := &Entry{
		Data:      payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl).Truncate(time.Millisecond),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("session: failed to marshal: %w", err)
	}

	key := r.key(id)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, raw, 0)
		pipe.PExpireAt(ctx, key, entry.ExpiresAt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry.Clone(), nil
}

func (r *RedisStore) read(ctx context.Context, c getter, key string) (*Entry, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal %s: %w", key, err)
	}
	return &e, nil
}

// Get returns the live entry for id
func (r *RedisStore) Get(ctx context.Context, id string) (*Entry, error) {
	key := r.key(id)
	e, err := r.read(ctx, r.client, key)
	if err != nil || e == nil {
		return nil, err
	}
	if e.IsExpired(r.now()) {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return e, nil
}

// Update merges data into the payload under WATCH so that concurrent updates
// of the same session are not lost
func (r *RedisStore) Update(ctx context.Context, id string, data map[string]any) (*Entry, error) {
	patch, err := normalizePayload(data)
	if err != nil {
		return nil, err
	}

	key := r.key(id)
	var updated *Entry
	txf := func(tx *redis.Tx) error {
		updated = nil
		e, err := r.read(ctx, tx, key)
		if err != nil || e == nil {
			return err
		}
		now := r.now()
		if e.IsExpired(now) {
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}
		if e.Data == nil {
			e.Data = map[string]any{}
		}
		for k, v := range patch {
			e.Data[k] = v
		}
		e.UpdatedAt = now

		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("session: failed to marshal: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, redis.KeepTTL)
			return nil
		})
		if err == nil {
			updated = e
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err = r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return updated, err
		}
	}
	return nil, fmt.Errorf("session: update %s: too many concurrent writers: %w", id, err)
}

// Delete removes the entry for id and reports whether it existed
func (r *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearExpired removes entries this store's clock considers expired. Redis
// drops keys on its own; this only catches entries the two clocks disagree on.
func (r *RedisStore) ClearExpired(ctx context.Context) (map[string]*Entry, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	now := r.now()
	for id, e := range all {
		if !e.IsExpired(now) {
			continue
		}
		if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
			return nil, err
		}
		delete(all, id)
	}
	return all, nil
}

// All returns every session key currently held by Redis
func (r *RedisStore) All(ctx context.Context) (map[string]*Entry, error) {
	out := map[string]*Entry{}
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		e, err := r.read(ctx, r.client, key)
		if err != nil {
			return nil, err
		}
		if e == nil {
			// expired between SCAN and GET
			continue
		}
		out[key[len(r.prefix):]] = e
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
