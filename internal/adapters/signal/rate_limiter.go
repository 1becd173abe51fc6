package signal

import (
	"sync"

	"github.com/dkeye/CodeSync/internal/domain"
	"golang.org/x/time/rate"
)

// JoinLimiter keeps one token bucket per connection for JOIN requests.
type JoinLimiter struct {
	mu       sync.Mutex
	limiters map[domain.ConnID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewJoinLimiter returns a limiter; a non-positive limit disables it.
func NewJoinLimiter(limit rate.Limit, burst int) *JoinLimiter {
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &JoinLimiter{
		limiters: make(map[domain.ConnID]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (jl *JoinLimiter) Allow(id domain.ConnID) bool {
	jl.mu.Lock()
	l, ok := jl.limiters[id]
	if !ok {
		l = rate.NewLimiter(jl.limit, jl.burst)
		jl.limiters[id] = l
	}
	jl.mu.Unlock()
	return l.Allow()
}

func (jl *JoinLimiter) Forget(id domain.ConnID) {
	jl.mu.Lock()
	delete(jl.limiters, id)
	jl.mu.Unlock()
}

func (jl *JoinLimiter) Len() int {
	jl.mu.Lock()
	defer jl.mu.Unlock()
	return len(jl.limiters)
}
