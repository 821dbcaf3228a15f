package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	t "github.com/evanhutnik/geocode-proxy/internal/types"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	DefaultRedisTTL = 24 * time.Hour
	keyPrefix       = "geocode:"
)

// redisClient is the subset of *redis.Client used by Redis.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type record struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Provider  string  `json:"provider"`
}

type RedisOption func(*Redis)

func RedisLoggerOption(logger *zap.SugaredLogger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

// Redis shares successful outcomes between proxy instances. Failures are never written, and
// a Redis error only degrades to computing the outcome.
type Redis struct {
	rc     redisClient
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewRedis(rc redisClient, ttl time.Duration, opts ...RedisOption) *Redis {
	if rc == nil {
		panic("Missing client in redis cache")
	}
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	r := &Redis{rc: rc, ttl: ttl, logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (t.Outcome, error) {
	if outcome, ok := r.get(ctx, key); ok {
		return outcome, nil
	}

	outcome, err := compute(ctx)
	if err != nil || !outcome.OK() {
		return outcome, err
	}

	value, err := json.Marshal(record{
		Latitude:  outcome.Coordinates.Latitude,
		Longitude: outcome.Coordinates.Longitude,
		Provider:  outcome.Provider,
	})
	if err != nil {
		r.logger.Warnw("Error marshalling geocode for redis: "+err.Error(), "address", key)
		return outcome, nil
	}
	if err := r.rc.Set(ctx, keyPrefix+key, value, r.ttl).Err(); err != nil {
		r.logger.Warnw("Redis error when storing geocode: "+err.Error(), "address", key)
	}
	return outcome, nil
}

func (r *Redis) get(ctx context.Context, key string) (t.Outcome, bool) {
	raw, err := r.rc.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warnw("Redis error when fetching geocode: "+err.Error(), "address", key)
		}
		return t.Outcome{}, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		r.logger.Errorw("Error unmarshalling redis geocode: "+err.Error(), "address", key)
		return t.Outcome{}, false
	}
	return t.Success(rec.Provider, t.Coordinates{Latitude: rec.Latitude, Longitude: rec.Longitude}), true
}
