package authkit

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrNonceNotFound indicates the supplied nonce was never issued or was already consumed.
	ErrNonceNotFound = errors.New("auth.nonce.not_found")
	// ErrNonceExpired indicates the nonce expired before consumption.
	ErrNonceExpired = errors.New("auth.nonce.expired")
)

// NonceStore issues one-time nonces that bind a Google sign-in to this server.
type NonceStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, token string) error
}

type memoryNonceStore struct {
	mutex     sync.Mutex
	entries   map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
	tokenSize int
}

// NewMemoryNonceStore constructs an in-memory NonceStore with the provided TTL.
func NewMemoryNonceStore(ttl time.Duration) NonceStore {
	return &memoryNonceStore{
		entries:   make(map[string]time.Time),
		ttl:       ttl,
		now:       time.Now,
		tokenSize: 32,
	}
}

func (nonces *memoryNonceStore) Issue(ctx context.Context) (string, error) {
	buffer := make([]byte, nonces.tokenSize)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("auth.nonce.issue: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buffer)
	nonces.mutex.Lock()
	defer nonces.mutex.Unlock()
	nonces.purgeExpiredLocked()
	nonces.entries[token] = nonces.now().Add(nonces.ttl)
	return token, nil
}

func (nonces *memoryNonceStore) Consume(ctx context.Context, token string) error {
	nonces.mutex.Lock()
	defer nonces.mutex.Unlock()
	defer nonces.purgeExpiredLocked()
	expiry, ok := nonces.entries[token]
	if !ok {
		return ErrNonceNotFound
	}
	delete(nonces.entries, token)
	if nonces.now().After(expiry) {
		return ErrNonceExpired
	}
	return nil
}

func (nonces *memoryNonceStore) purgeExpiredLocked() {
	now := nonces.now()
	for token, expiry := range nonces.entries {
		if now.After(expiry) {
			delete(nonces.entries, token)
		}
	}
}
