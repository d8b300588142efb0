package auth

import (
	"sync"
	"time"
)

// Revocations remembers logged-out token ids until they would have expired anyway.
type Revocations struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{tokens: make(map[string]time.Time), now: time.Now}
}

func (r *Revocations) Revoke(tokenID string, until time.Time) {
	if tokenID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenID] = until
	r.pruneLocked()
}

func (r *Revocations) IsRevoked(tokenID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.tokens[tokenID]
	if !ok {
		return false
	}
	if r.now().After(until) {
		delete(r.tokens, tokenID)
		return false
	}
	return true
}

func (r *Revocations) pruneLocked() {
	now := r.now()
	for id, until := range r.tokens {
		if now.After(until) {
			delete(r.tokens, id)
		}
	}
}
