package amadeus

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultRateLimit matches the Amadeus self-service test quota.
const DefaultRateLimit = 10

// rateLimiter is a token bucket. Tokens are buffered in a channel and topped
// up at a steady interval, so a full second's quota may burst at start-up.
type rateLimiter struct {
	tokens chan struct{}
	stop   chan struct{}
	once   sync.Once
}

func newRateLimiter(perSecond int) *rateLimiter {
	if perSecond <= 0 {
		perSecond = DefaultRateLimit
	}
	rl := &rateLimiter{
		tokens: make(chan struct{}, perSecond),
		stop:   make(chan struct{}),
	}
	for i := 0; i < perSecond; i++ {
		rl.tokens <- struct{}{}
	}
	go rl.refill(time.Second / time.Duration(perSecond))
	return rl
}

// wait takes one token, blocking until one is available or ctx ends.
func (rl *rateLimiter) wait(ctx context.Context) error {
	select {
	case <-rl.tokens:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("rate limiter: %w", ctx.Err())
	}
}

func (rl *rateLimiter) refill(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			select {
			case rl.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Close stops refilling. Buffered tokens can still be taken.
func (rl *rateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}
