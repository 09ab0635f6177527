package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/celerix-dev/wardledger/pkg/ledger"
)

// Authorizer decides whether caller may mutate the ledger.
// It returns an error wrapping ledger.ErrUnauthorized on refusal.
type Authorizer interface {
	Authorize(ctx context.Context, caller common.Address) error
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, caller common.Address) error

func (f AuthorizerFunc) Authorize(ctx context.Context, caller common.Address) error {
	return f(ctx, caller)
}

// Ownership is an Authorizer whose administrator can hand the role over.
type Ownership interface {
	Authorizer
	Admin() common.Address
	TransferOwnership(caller, next common.Address) error
}

// AdminGuard admits exactly one administrator address.
type AdminGuard struct {
	mu    sync.RWMutex
	admin common.Address
}

// NewAdminGuard configures the guard with its initial administrator.
func NewAdminGuard(admin common.Address) *AdminGuard {
	return &AdminGuard{admin: admin}
}

// Admin returns the current administrator.
func (g *AdminGuard) Admin() common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.admin
}

func (g *AdminGuard) Authorize(_ context.Context, caller common.Address) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if caller == (common.Address{}) || caller != g.admin {
		return fmt.Errorf("%w: %s", ledger.ErrUnauthorized, caller.Hex())
	}
	return nil
}

// TransferOwnership hands the administrator role to next.
// Only the current administrator may do this, and never to the zero address.
// Records are unaffected: they stay bound to the ledger, not to a person.
func (g *AdminGuard) TransferOwnership(caller, next common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if caller == (common.Address{}) || caller != g.admin {
		return fmt.Errorf("%w: %s", ledger.ErrUnauthorized, caller.Hex())
	}
	if next == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ledger.ErrInvalidAddress)
	}
	g.admin = next
	return nil
}
