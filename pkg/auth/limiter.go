package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 5
	defaultBurst = 10
)

// limiterPool hands out one token bucket per caller key. Keys are
// API keys for authenticated callers and remote IPs otherwise.
type limiterPool struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     float64
	burst   int
}

func newLimiterPool(cfg SecConfig) *limiterPool {
	rps := cfg.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &limiterPool{
		buckets: make(map[string]*rate.Limiter),
		rps:     rps,
		burst:   burst,
	}
}

func (p *limiterPool) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.buckets[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.rps), p.burst)
		p.buckets[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
