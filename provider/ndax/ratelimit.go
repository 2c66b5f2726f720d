package ndax

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

type RateLimit struct {
	ID       string
	Limit    int
	Interval time.Duration
	Linked   []string
}

// RateLimits is the public endpoint budget published by the exchange. Every
// endpoint also consumes a token of its group limit.
var RateLimits = []RateLimit{
	{ID: HttpEndpointsLimit, Limit: httpLimit, Interval: time.Minute},
	{ID: MarketsURL, Limit: httpLimit, Interval: time.Minute, Linked: []string{HttpEndpointsLimit}},
	{ID: OrderBookURL, Limit: httpLimit, Interval: time.Minute, Linked: []string{HttpEndpointsLimit}},
	{ID: LastTradedPriceURL, Limit: httpLimit, Interval: time.Minute, Linked: []string{HttpEndpointsLimit}},
	{ID: WsEndpointsLimit, Limit: wsLimit, Interval: time.Minute},
	{ID: WsOrderBookChannel, Limit: wsLimit, Interval: time.Minute, Linked: []string{WsEndpointsLimit}},
	{ID: WsPingRequest, Limit: wsLimit, Interval: time.Minute, Linked: []string{WsEndpointsLimit}},
}

type RateLimiter struct {
	limiters map[string]*rate.Limiter
	linked   map[string][]string
}

func NewRateLimiter(limits []RateLimit) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter, len(limits)),
		linked:   make(map[string][]string, len(limits)),
	}

	for _, l := range limits {
		every := l.Interval / time.Duration(l.Limit)
		rl.limiters[l.ID] = rate.NewLimiter(rate.Every(every), l.Limit)
		rl.linked[l.ID] = l.Linked
	}

	return rl
}

// Wait blocks until id and all of its linked limits have a token. Ids without
// a configured limit are not throttled.
func (rl *RateLimiter) Wait(ctx context.Context, id string) error {
	limiter, ok := rl.limiters[id]
	if !ok {
		return nil
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", id, err)
	}

	for _, linkedID := range rl.linked[id] {
		linked, ok := rl.limiters[linkedID]
		if !ok {
			continue
		}
		if err := linked.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit %s: %w", linkedID, err)
		}
	}

	return nil
}
