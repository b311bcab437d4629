package auth

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/mrlokans/librarian/internal/config"
)

// RateLimiter throttles failed logins. Failures are counted per client IP
// and username, and separately per client IP across all usernames, so one
// client cannot spread guesses over many accounts. The per-account lockout
// in Service applies on top of this.
type RateLimiter struct {
	mu                sync.Mutex
	attempts          map[string]*attemptRecord
	maxAttempts       int
	maxClientAttempts int
	windowDuration    time.Duration
	lockoutDuration   time.Duration
	cleanupInterval   time.Duration
	now               func() time.Time
	stopCleanup       chan struct{}
	stopOnce          sync.Once
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

type RateLimitConfig struct {
	MaxAttempts       int           // per client and username (default: 5)
	MaxClientAttempts int           // per client across usernames (default: 20)
	WindowDuration    time.Duration // default: 15m
	LockoutDuration   time.Duration // default: 30m
	CleanupInterval   time.Duration // default: 5m
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:       5,
		MaxClientAttempts: 20,
		WindowDuration:    15 * time.Minute,
		LockoutDuration:   30 * time.Minute,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimitConfigFrom maps auth settings onto a RateLimitConfig. Unset
// values keep their defaults.
func RateLimitConfigFrom(cfg config.Auth) RateLimitConfig {
	rl := DefaultRateLimitConfig()
	if cfg.MaxLoginAttempts > 0 {
		rl.MaxAttempts = cfg.MaxLoginAttempts
	}
	if cfg.MaxClientLoginAttempts > 0 {
		rl.MaxClientAttempts = cfg.MaxClientLoginAttempts
	}
	if cfg.RateLimitWindow > 0 {
		rl.WindowDuration = cfg.RateLimitWindow
	}
	if cfg.LockoutDuration > 0 {
		rl.LockoutDuration = cfg.LockoutDuration
	}
	return rl
}

// NewRateLimiter starts a limiter and its cleanup loop. Call Stop when done.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.MaxClientAttempts <= 0 {
		cfg.MaxClientAttempts = defaults.MaxClientAttempts
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = defaults.WindowDuration
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = defaults.LockoutDuration
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}

	rl := &RateLimiter{
		attempts:          make(map[string]*attemptRecord),
		maxAttempts:       cfg.MaxAttempts,
		maxClientAttempts: cfg.MaxClientAttempts,
		windowDuration:    cfg.WindowDuration,
		lockoutDuration:   cfg.LockoutDuration,
		cleanupInterval:   cfg.CleanupInterval,
		now:               time.Now,
		stopCleanup:       make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func clientKey(ip string) string {
	return "client:" + ip
}

func userKey(ip, username string) string {
	return "user:" + ip + ":" + username
}

// Allow reports whether a login from ip for username may proceed, and if
// not, how long the caller has to wait. An empty username only checks the
// client budget.
func (rl *RateLimiter) Allow(ip, username string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if ok, wait := rl.allowKey(clientKey(ip), rl.maxClientAttempts, now); !ok {
		return false, wait
	}
	if username == "" {
		return true, 0
	}
	return rl.allowKey(userKey(ip, username), rl.maxAttempts, now)
}

func (rl *RateLimiter) allowKey(key string, limit int, now time.Time) (bool, time.Duration) {
	record, exists := rl.attempts[key]
	if !exists {
		return true, 0
	}
	if !record.lockedUntil.IsZero() && now.Before(record.lockedUntil) {
		return false, record.lockedUntil.Sub(now)
	}
	if now.Sub(record.firstAttempt) > rl.windowDuration {
		return true, 0
	}
	if record.count < limit {
		return true, 0
	}
	return false, rl.lockoutDuration
}

// RecordFailure counts a failed login against both budgets. It reports
// whether either budget is now exhausted.
func (rl *RateLimiter) RecordFailure(ip, username string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	locked := rl.failKey(clientKey(ip), rl.maxClientAttempts, now)
	if username != "" && rl.failKey(userKey(ip, username), rl.maxAttempts, now) {
		locked = true
	}
	if locked {
		return true, rl.lockoutDuration
	}
	return false, 0
}

func (rl *RateLimiter) failKey(key string, limit int, now time.Time) bool {
	record, exists := rl.attempts[key]
	if !exists {
		record = &attemptRecord{firstAttempt: now}
		rl.attempts[key] = record
	}

	if now.Sub(record.firstAttempt) > rl.windowDuration {
		record.count = 0
		record.firstAttempt = now
		record.lockedUntil = time.Time{}
	}

	record.count++
	if record.count >= limit {
		record.lockedUntil = now.Add(rl.lockoutDuration)
		return true
	}
	return false
}

// RecordSuccess clears the username budget. The client budget is kept, so
// logging into one account does not reset guesses against others.
func (rl *RateLimiter) RecordSuccess(ip, username string) {
	rl.mu.Lock()
	delete(rl.attempts, userKey(ip, username))
	rl.mu.Unlock()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup drops records whose window and lockout have both passed.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	expiry := rl.windowDuration + rl.lockoutDuration
	for key, record := range rl.attempts {
		windowExpired := now.Sub(record.firstAttempt) > expiry
		lockoutExpired := record.lockedUntil.IsZero() || now.After(record.lockedUntil)
		if windowExpired && lockoutExpired {
			delete(rl.attempts, key)
		}
	}
}

// LoginMiddleware guards the JSON login route. It rejects throttled callers
// with 429 and records the outcome of every attempt it lets through: 401 is
// a failure and 200 a success.
func (rl *RateLimiter) LoginMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		ip := c.ClientIP()
		var req loginRequest
		// The body is cached, so the handler can bind it again.
		_ = c.ShouldBindBodyWith(&req, binding.JSON)

		if allowed, retryAfter := rl.Allow(ip, req.Username); !allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many login attempts",
				"retry_after": retryAfter.String(),
			})
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			rl.RecordFailure(ip, req.Username)
		case http.StatusOK:
			rl.RecordSuccess(ip, req.Username)
		}
	}
}
