package security

import (
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimitConfig tunes the per-client gateway limiter.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	IdleTTL           time.Duration `yaml:"idle_ttl"`
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter applies a token-bucket limit per client key (resolved
// from the authenticated identity or the caller IP). Idle buckets are swept
// periodically so the map does not grow without bound.
type ClientRateLimiter struct {
	cfg    RateLimitConfig
	logger *logrus.Logger

	mu      sync.Mutex
	clients map[string]*clientLimiter

	stop     chan struct{}
	stopOnce sync.Once
}

func NewClientRateLimiter(cfg RateLimitConfig, logger *logrus.Logger) *ClientRateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = cfg.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}

	rl := &ClientRateLimiter{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*clientLimiter),
		stop:    make(chan struct{}),
	}

	if cfg.Enabled {
		go rl.sweepLoop()
	}
	return rl
}

// Allow reports whether one more request from key fits the limit.
func (rl *ClientRateLimiter) Allow(key string) bool {
	if !rl.cfg.Enabled {
		return true
	}

	rl.mu.Lock()
	entry, ok := rl.clients[key]
	if !ok {
		perSecond := rate.Limit(float64(rl.cfg.RequestsPerMinute) / 60.0)
		entry = &clientLimiter{limiter: rate.NewLimiter(perSecond, rl.cfg.BurstSize)}
		rl.clients[key] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// Stop ends the background sweeper.
func (rl *ClientRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *ClientRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

func (rl *ClientRateLimiter) sweep() {
	cutoff := time.Now().Add(-rl.cfg.IdleTTL)

	rl.mu.Lock()
	removed := 0
	for key, entry := range rl.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	remaining := len(rl.clients)
	rl.mu.Unlock()

	if removed > 0 {
		rl.logger.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": remaining,
		}).Debug("Swept idle rate limit buckets")
	}
}

// Middleware rejects over-limit requests with 429.
func (rl *ClientRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.clientKey(r)
			if !rl.Allow(key) {
				rl.logger.WithFields(logrus.Fields{
					"client": key,
					"path":   r.URL.Path,
				}).Warn("Rate limit exceeded")

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":{"message":"Rate limit exceeded","type":"rate_limit_error","code":429}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *ClientRateLimiter) clientKey(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return id.Subject
	}
	return ClientIP(r)
}
