package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chatrelay/relay/internal/storage"
	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable reports that the counter store could not be reached
// within the configured timeout. The send path treats it as fail-closed.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// WindowStore is the sliding-window counter contract the limiter is built
// on. Timestamps are recorded per tenant; range bounds are exclusive on
// `after` and inclusive on `until`.
type WindowStore interface {
	// RecordAndCount atomically purges entries at or before cutoff, records
	// ts, refreshes the key TTL, and returns the number of entries then in
	// the window (including ts).
	RecordAndCount(ctx context.Context, tenant string, ts, cutoff time.Time) (int64, error)

	// Remove deletes a single recorded timestamp.
	Remove(ctx context.Context, tenant string, ts time.Time) error

	// CountSince counts entries with after < timestamp <= until.
	CountSince(ctx context.Context, tenant string, after, until time.Time) (int64, error)

	// OldestSince returns the least-recent entry with after < timestamp <= until.
	OldestSince(ctx context.Context, tenant string, after, until time.Time) (time.Time, bool, error)

	// PurgeBefore removes entries at or before cutoff.
	PurgeBefore(ctx context.Context, tenant string, cutoff time.Time) error

	// Clear drops all window state for a tenant.
	Clear(ctx context.Context, tenant string) error
}

// RedisWindowStore keeps each tenant's accepted-send timestamps in a sorted
// set scored by UnixNano. Every call carries a short timeout; transport
// failures surface as ErrStoreUnavailable.
type RedisWindowStore struct {
	redis   *storage.RedisClient
	timeout time.Duration
}

func NewRedisWindowStore(redisClient *storage.RedisClient, timeout time.Duration) *RedisWindowStore {
	return &RedisWindowStore{
		redis:   redisClient,
		timeout: timeout,
	}
}

func windowKey(tenant string) string {
	return fmt.Sprintf("rate:msg:daily:%s", tenant)
}

func score(t time.Time) float64 {
	return float64(t.UnixNano())
}

func member(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func (s *RedisWindowStore) RecordAndCount(ctx context.Context, tenant string, ts, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := windowKey(tenant)

	var card *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", member(cutoff))
		pipe.ZAdd(ctx, key, redis.Z{Score: score(ts), Member: member(ts)})
		card = pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, dayWindow)
		return nil
	})
	if err != nil {
		return 0, storeErr("record", err)
	}

	return card.Val(), nil
}

func (s *RedisWindowStore) Remove(ctx context.Context, tenant string, ts time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.redis.ZRem(ctx, windowKey(tenant), member(ts)); err != nil {
		return storeErr("remove", err)
	}
	return nil
}

func (s *RedisWindowStore) CountSince(ctx context.Context, tenant string, after, until time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.redis.ZCount(ctx, windowKey(tenant), "("+member(after), member(until))
	if err != nil {
		return 0, storeErr("count", err)
	}
	return count, nil
}

func (s *RedisWindowStore) OldestSince(ctx context.Context, tenant string, after, until time.Time) (time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.redis.ZRangeByScoreWithScores(ctx, windowKey(tenant), &redis.ZRangeBy{
		Min:    "(" + member(after),
		Max:    member(until),
		Offset: 0,
		Count:  1,
	})
	if err != nil {
		return time.Time{}, false, storeErr("oldest", err)
	}

	if len(entries) == 0 {
		return time.Time{}, false, nil
	}

	return time.Unix(0, int64(entries[0].Score)), true, nil
}

func (s *RedisWindowStore) PurgeBefore(ctx context.Context, tenant string, cutoff time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.redis.ZRemRangeByScore(ctx, windowKey(tenant), "-inf", member(cutoff)); err != nil {
		return storeErr("purge", err)
	}
	return nil
}

func (s *RedisWindowStore) Clear(ctx context.Context, tenant string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.redis.Del(ctx, windowKey(tenant)); err != nil {
		return storeErr("clear", err)
	}
	return nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
