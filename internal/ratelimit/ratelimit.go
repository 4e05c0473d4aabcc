package ratelimit

import (
	"fmt"
	"sync"
	"time"

	gerr "github.com/jekabolt/delivery-analytics/internal/errors"
)

// Limiter implements a simple in-memory fixed window rate limiter
type Limiter struct {
	mu       sync.RWMutex
	counters map[string]*counter
	window   time.Duration
	max      int
	stop     chan struct{}
	once     sync.Once
}

type counter struct {
	count     int
	expiresAt time.Time
}

// NewLimiter creates a new rate limiter with the specified window and max requests
func NewLimiter(window time.Duration, max int) *Limiter {
	l := &Limiter{
		counters: make(map[string]*counter),
		window:   window,
		max:      max,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow checks if a request for the given key is allowed
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, exists := l.counters[key]

	if !exists || now.After(c.expiresAt) {
		l.counters[key] = &counter{
			count:     1,
			expiresAt: now.Add(l.window),
		}
		return true
	}

	if c.count >= l.max {
		return false
	}

	c.count++
	return true
}

// GetRemaining returns the number of remaining requests for the given key
func (l *Limiter) GetRemaining(key string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, exists := l.counters[key]
	if !exists || time.Now().After(c.expiresAt) {
		return l.max
	}

	remaining := l.max - c.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Stop ends the cleanup goroutine.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// cleanup periodically removes expired counters
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for key, c := range l.counters {
				if now.After(c.expiresAt) {
					delete(l.counters, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Config bounds login attempts.
type Config struct {
	LoginPerIP    int    `mapstructure:"login_per_ip"`
	LoginPerEmail int    `mapstructure:"login_per_email"`
	Window        string `mapstructure:"window"`
}

// LoginLimiter throttles login attempts per client IP and per email.
type LoginLimiter struct {
	ip    *Limiter
	email *Limiter
}

// NewLoginLimiter creates a login limiter, 20 attempts per IP and 5 per email
// in a 15 minute window by default.
func NewLoginLimiter(c Config) (*LoginLimiter, error) {
	window := 15 * time.Minute
	if c.Window != "" {
		var err error
		window, err = time.ParseDuration(c.Window)
		if err != nil {
			return nil, fmt.Errorf("bad rate limit window: %w", err)
		}
	}
	perIP, perEmail := c.LoginPerIP, c.LoginPerEmail
	if perIP <= 0 {
		perIP = 20
	}
	if perEmail <= 0 {
		perEmail = 5
	}
	return &LoginLimiter{
		ip:    NewLimiter(window, perIP),
		email: NewLimiter(window, perEmail),
	}, nil
}

// CheckLogin verifies if a login attempt is allowed from the given IP for the email.
func (m *LoginLimiter) CheckLogin(ip, email string) error {
	if !m.ip.Allow(ip) {
		return fmt.Errorf("%w: too many login attempts from this IP address", gerr.ErrTooManyRequests)
	}
	if email != "" && !m.email.Allow(email) {
		return fmt.Errorf("%w: too many login attempts for this account", gerr.ErrTooManyRequests)
	}
	return nil
}

func (m *LoginLimiter) Stop() {
	m.ip.Stop()
	m.email.Stop()
}
