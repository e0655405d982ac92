package auth

import (
	"sync"
	"time"
)

// Rate limit policy for the login endpoint: 5 attempts per 2 minute
// window, then a 5 minute block.
const (
	loginMaxAttempts = 5
	loginWindow      = 2 * time.Minute
	loginBlockTime   = 5 * time.Minute
)

// LoginRateLimiter throttles login attempts per client IP. The HTTP API
// is reachable from the LAN, so brute-forcing PAM credentials through it
// must stay slow.
type LoginRateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*ipAttempts
}

type ipAttempts struct {
	count     int
	firstTime time.Time
	blocked   bool
	blockEnd  time.Time
}

// NewLoginRateLimiter creates a rate limiter with the default policy.
func NewLoginRateLimiter() *LoginRateLimiter {
	rl := &LoginRateLimiter{
		attempts: make(map[string]*ipAttempts),
	}
	go rl.cleanup()
	return rl
}

// Allow records a login attempt for the IP and reports whether it may
// proceed. When blocked, the second return is the seconds left until the
// block lifts.
func (rl *LoginRateLimiter) Allow(ip string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	att, exists := rl.attempts[ip]

	if !exists {
		rl.attempts[ip] = &ipAttempts{
			count:     1,
			firstTime: now,
		}
		return true, 0
	}

	if att.blocked {
		if now.After(att.blockEnd) {
			att.blocked = false
			att.count = 1
			att.firstTime = now
			return true, 0
		}
		return false, int(att.blockEnd.Sub(now).Seconds())
	}

	if now.Sub(att.firstTime) > loginWindow {
		att.count = 1
		att.firstTime = now
		return true, 0
	}

	att.count++
	if att.count > loginMaxAttempts {
		att.blocked = true
		att.blockEnd = now.Add(loginBlockTime)
		return false, int(loginBlockTime.Seconds())
	}

	return true, 0
}

// Reset clears the counter for an IP after a successful login.
func (rl *LoginRateLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, ip)
}

// cleanup drops stale entries so the map does not grow with every
// scanner that pokes the login endpoint.
func (rl *LoginRateLimiter) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for ip, att := range rl.attempts {
			if !att.blocked && now.Sub(att.firstTime) > loginWindow {
				delete(rl.attempts, ip)
			} else if att.blocked && now.After(att.blockEnd) {
				delete(rl.attempts, ip)
			}
		}
		rl.mu.Unlock()
	}
}
