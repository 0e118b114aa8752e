package photos

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/hotel-scout/internal/cache"
	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/Veraticus/hotel-scout/internal/service"
)

// EndpointPhotos labels cached photo searches.
const EndpointPhotos = "hotel_photos"

// CachedSearcher caches another searcher's results per hotel and city.
type CachedSearcher struct {
	next   Searcher
	policy *cache.Policy
}

// NewCachedSearcher wraps next with a response cache.
func NewCachedSearcher(next Searcher, store service.CacheStore, ttl time.Duration, purgeProbability float64, logger *slog.Logger) *CachedSearcher {
	return &CachedSearcher{
		next:   next,
		policy: cache.NewPolicy(store, EndpointPhotos, ttl, purgeProbability, logger),
	}
}

// Search returns cached photos or searches and caches them.
func (c *CachedSearcher) Search(ctx context.Context, hotelName, city string) ([]model.Photo, error) {
	args := map[string]string{"hotel": hotelName, "city": city}
	return cache.Fetch(ctx, c.policy, args, func(ctx context.Context) ([]model.Photo, error) {
		return c.next.Search(ctx, hotelName, city)
	})
}
