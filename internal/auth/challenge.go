// Package auth proves caller identity with single-use signed challenges.
//
// A client asks for a nonce, signs LoginMessage(nonce) with its wallet key and presents the
// signature. Redeem recovers the signer, so the ledger only ever sees an address that holds
// the matching private key.
package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/celerix-dev/wardledger/internal/vault"
	"github.com/celerix-dev/wardledger/pkg/ledger"
)

// DefaultTTL is how long an issued nonce stays redeemable.
const DefaultTTL = 5 * time.Minute

// LoginMessage is the exact text a client signs for nonce.
func LoginMessage(nonce string) string {
	return "Sign in to the ward ledger.\nNonce: " + nonce
}

// Challenges tracks outstanding nonces.
type Challenges struct {
	mu      sync.Mutex
	pending map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewChallenges returns an empty challenge set. A non-positive ttl uses DefaultTTL.
func NewChallenges(ttl time.Duration) *Challenges {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Challenges{
		pending: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue creates a nonce that can be redeemed once before it expires.
func (c *Challenges) Issue() string {
	nonce := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	c.pending[nonce] = c.now().Add(c.ttl)
	return nonce
}

// Redeem consumes nonce and returns the address that signed LoginMessage(nonce).
// Unknown, expired or already redeemed nonces fail with ledger.ErrUnauthorized.
func (c *Challenges) Redeem(nonce string, sig []byte) (common.Address, error) {
	c.mu.Lock()
	expires, ok := c.pending[nonce]
	delete(c.pending, nonce)
	now := c.now()
	c.mu.Unlock()

	if !ok {
		return common.Address{}, fmt.Errorf("%w: unknown nonce", ledger.ErrUnauthorized)
	}
	if now.After(expires) {
		return common.Address{}, fmt.Errorf("%w: nonce expired", ledger.ErrUnauthorized)
	}

	addr, err := vault.Recover(LoginMessage(nonce), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ledger.ErrUnauthorized, err)
	}
	return addr, nil
}

// Pending reports the number of outstanding nonces.
func (c *Challenges) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// sweep drops expired nonces. Caller holds c.mu.
func (c *Challenges) sweep() {
	now := c.now()
	for nonce, expires := range c.pending {
		if now.After(expires) {
			delete(c.pending, nonce)
		}
	}
}
