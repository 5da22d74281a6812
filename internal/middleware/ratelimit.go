package middleware

import (
	"sync"
	"time"

	"github.com/eleven-am/civic311/internal/auth"
	"github.com/eleven-am/civic311/internal/shared"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 5,
		Burst:             10,
		CleanupInterval:   5 * time.Minute,
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiterStore struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	config   RateLimiterConfig
}

func newRateLimiterStore(cfg RateLimiterConfig) *rateLimiterStore {
	return &rateLimiterStore{
		visitors: make(map[string]*visitor),
		config:   cfg,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.Burst)}
		s.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// evict drops limiters that have not been used for a full interval.
func (s *rateLimiterStore) evict(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, v := range s.visitors {
		if now.Sub(v.lastSeen) >= s.config.CleanupInterval {
			delete(s.visitors, key)
		}
	}
}

func (s *rateLimiterStore) cleanupLoop() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for now := range ticker.C {
		s.evict(now)
	}
}

// RateLimiter limits requests per caller: the authenticated user when
// claims are present, the client IP otherwise.
func RateLimiter(cfg RateLimiterConfig) echo.MiddlewareFunc {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}
	store := newRateLimiterStore(cfg)
	go store.cleanupLoop()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if claims := auth.GetClaims(c); claims != nil {
				key = claims.UID
			}

			if !store.getLimiter(key).Allow() {
				return shared.TooManyRequests("rate_limit_exceeded", "Too many requests, please try again later")
			}
			return next(c)
		}
	}
}
