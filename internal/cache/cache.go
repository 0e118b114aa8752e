// Package cache wraps outbound calls with a TTL response cache keyed by endpoint and arguments.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Veraticus/hotel-scout/internal/metrics"
	"github.com/Veraticus/hotel-scout/internal/service"
	"golang.org/x/sync/singleflight"
)

// DefaultPurgeProbability is the chance that a lookup also purges expired entries.
const DefaultPurgeProbability = 0.01

// Policy caches the results of one endpoint for TTL.
type Policy struct {
	Store            service.CacheStore
	Logger           *slog.Logger
	group            *singleflight.Group
	now              func() time.Time
	chance           func() float64
	Endpoint         string
	TTL              time.Duration
	PurgeProbability float64
}

// NewPolicy creates a policy for endpoint. A nil store disables caching.
func NewPolicy(store service.CacheStore, endpoint string, ttl time.Duration, purgeProbability float64, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		Store:            store,
		Endpoint:         endpoint,
		TTL:              ttl,
		PurgeProbability: purgeProbability,
		Logger:           logger.With("component", "cache", "endpoint", endpoint),
		group:            &singleflight.Group{},
		now:              time.Now,
		chance:           rand.Float64,
	}
}

// Key hashes normalized call arguments. Arguments are normalized by JSON encoding,
// which orders map keys and drops formatting differences.
func Key(args any) (string, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Fetch returns the cached value for args or calls fetch and caches its result.
// Errors are never cached, and store failures fall back to calling fetch.
func Fetch[T any](ctx context.Context, p *Policy, args any, fetch func(context.Context) (T, error)) (T, error) {
	if p == nil || p.Store == nil || p.TTL <= 0 {
		return fetch(ctx)
	}

	key, err := Key(args)
	if err != nil {
		return fetch(ctx)
	}

	p.maybePurge(ctx)

	raw, ok, getErr := p.Store.GetCached(ctx, p.Endpoint, key)
	if getErr != nil {
		p.Logger.Warn("Cache read failed", "error", getErr)
	}
	if ok {
		var value T
		decodeErr := json.Unmarshal(raw, &value)
		if decodeErr == nil {
			metrics.CacheLookups.WithLabelValues(p.Endpoint, "hit").Inc()
			return value, nil
		}
		p.Logger.Warn("Discarding undecodable cache entry", "error", decodeErr)
	}
	metrics.CacheLookups.WithLabelValues(p.Endpoint, "miss").Inc()

	v, err, _ := p.group.Do(key, func() (any, error) {
		value, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return value, fetchErr
		}
		p.store(ctx, key, value)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (p *Policy) store(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		p.Logger.Warn("Failed to encode response for cache", "error", err)
		return
	}
	if err := p.Store.PutCached(ctx, p.Endpoint, key, payload, p.now().Add(p.TTL)); err != nil {
		p.Logger.Warn("Cache write failed", "error", err)
	}
}

func (p *Policy) maybePurge(ctx context.Context) {
	if p.PurgeProbability <= 0 || p.chance() >= p.PurgeProbability {
		return
	}
	n, err := p.Store.PurgeExpired(ctx)
	if err != nil {
		p.Logger.Warn("Cache purge failed", "error", err)
		return
	}
	if n > 0 {
		p.Logger.Debug("Purged expired cache entries", "count", n)
	}
}
