// Package cache keeps pipeline bookkeeping in Redis: which article contents
// were already published and which process currently owns a run.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/shamaton/msgpack"
)

const (
	processedPrefix = "blogpipe:processed:"
	runLockKey      = "blogpipe:run"
)

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("cache: another pipeline run is in progress")

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		DB:              db,
		ConnMaxIdleTime: time.Minute * 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", addr, err)
	}
	return client, nil
}

// Record describes a published article.
type Record struct {
	PostID      uint64 `msgpack:"p"`
	Slug        string `msgpack:"s"`
	ProcessedAt int64  `msgpack:"t"`
}

// Processed maps article checksums to the post they produced.
type Processed struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewProcessed stores records for ttl; zero keeps them forever.
func NewProcessed(client redis.Cmdable, ttl time.Duration) *Processed {
	return &Processed{client: client, ttl: ttl}
}

func (p *Processed) Get(ctx context.Context, checksum string) (Record, bool, error) {
	raw, err := p.client.Get(ctx, processedPrefix+checksum).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("cache: get %s: %w", checksum, err)
	}
	var rec Record
	if err := msgpack.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, fmt.Errorf("cache: decode %s: %w", checksum, err)
	}
	return rec, true, nil
}

func (p *Processed) Mark(ctx context.Context, checksum string, rec Record) error {
	if rec.ProcessedAt == 0 {
		rec.ProcessedAt = time.Now().UnixMilli()
	}
	raw, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", checksum, err)
	}
	if err := p.client.Set(ctx, processedPrefix+checksum, raw, p.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", checksum, err)
	}
	return nil
}

// Forget drops the record so the article is processed again next run.
func (p *Processed) Forget(ctx context.Context, checksum string) error {
	return p.client.Del(ctx, processedPrefix+checksum).Err()
}

// RunLock serializes pipeline runs across processes.
type RunLock struct {
	locker *redislock.Client
	ttl    time.Duration
}

func NewRunLock(client redislock.RedisClient, ttl time.Duration) *RunLock {
	return &RunLock{locker: redislock.New(client), ttl: ttl}
}

// Acquire obtains the run lock without waiting. The returned func releases
// it and must be called once the run finishes.
func (l *RunLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	lock, err := l.locker.Obtain(ctx, runLockKey, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("cache: obtain run lock: %w", err)
	}
	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}
