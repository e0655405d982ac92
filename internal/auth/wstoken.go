package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

const (
	// WSTokenTTL is how long a token stays redeemable. The trace page
	// requests a token and dials the websocket immediately, so the
	// window only needs to cover one round trip.
	WSTokenTTL = 30 * time.Second
	// WSTokenLength is the token size in bytes before hex encoding.
	WSTokenLength = 32
)

// WSTokenStore issues one-time tokens that authorize websocket
// upgrades. Browsers send cookies on cross-site websocket dials, so the
// upgrade is gated on a token only same-origin scripts can have fetched.
type WSTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*wsTokenEntry
}

type wsTokenEntry struct {
	username  string
	createdAt time.Time
}

// NewWSTokenStore creates an empty token store.
func NewWSTokenStore() *WSTokenStore {
	store := &WSTokenStore{
		tokens: make(map[string]*wsTokenEntry),
	}
	go store.cleanupLoop()
	return store
}

// Generate mints a token bound to the user.
func (s *WSTokenStore) Generate(username string) (string, error) {
	bytes := make([]byte, WSTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(bytes)

	s.mu.Lock()
	s.tokens[token] = &wsTokenEntry{
		username:  username,
		createdAt: time.Now(),
	}
	s.mu.Unlock()

	return token, nil
}

// Validate redeems a token, returning the bound username. A token is
// consumed on first use whether or not it has expired.
func (s *WSTokenStore) Validate(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.tokens[token]
	if !exists {
		return "", false
	}

	delete(s.tokens, token)

	if time.Since(entry.createdAt) > WSTokenTTL {
		return "", false
	}

	return entry.username, true
}

func (s *WSTokenStore) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanup()
	}
}

// cleanup drops tokens that were issued but never redeemed.
func (s *WSTokenStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for token, entry := range s.tokens {
		if now.Sub(entry.createdAt) > WSTokenTTL {
			delete(s.tokens, token)
		}
	}
}
