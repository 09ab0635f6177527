package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/celerix-dev/wardledger/pkg/ledger"
)

// BindAdmin resolves the administrator of the ledger kept in store.
//
// A store that is already bound keeps its administrator; a non-zero want that differs from
// it fails with ledger.ErrUnauthorized. An unbound store is bound to want, or to initial when
// want is zero. When both are zero nothing is bound and the zero address is returned, which
// admits nobody.
func BindAdmin(ctx context.Context, store AdminStore, want, initial common.Address) (common.Address, error) {
	stored, ok, err := store.LoadAdmin(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if ok {
		if want != (common.Address{}) && want != stored {
			return common.Address{}, fmt.Errorf("%w: ledger is administered by %s, not %s",
				ledger.ErrUnauthorized, stored.Hex(), want.Hex())
		}
		return stored, nil
	}

	admin := want
	if admin == (common.Address{}) {
		admin = initial
	}
	if admin == (common.Address{}) {
		return admin, nil
	}
	if err := store.SaveAdmin(ctx, admin); err != nil {
		return common.Address{}, err
	}
	return admin, nil
}

// Admin returns the current administrator, or the zero address when the guard has no single one.
func (l *Ledger) Admin(context.Context) (common.Address, error) {
	if owner, ok := l.guard.(Ownership); ok {
		return owner.Admin(), nil
	}
	return common.Address{}, nil
}

// TransferAdmin hands the administrator role from caller to next.
// The new administrator is persisted before the guard switches, so the rotation survives a restart.
func (l *Ledger) TransferAdmin(ctx context.Context, caller, next common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.transferAdmin(ctx, caller, next)
	l.metrics.observe("transfer_admin", err)
	if err != nil {
		l.log.Debug("admin transfer rejected", "caller", caller.Hex(), "next", next.Hex(), "error", err)
		return err
	}
	l.log.Info("administrator changed", "from", caller.Hex(), "to", next.Hex())
	return nil
}

func (l *Ledger) transferAdmin(ctx context.Context, caller, next common.Address) error {
	owner, ok := l.guard.(Ownership)
	if !ok {
		return errors.New("transfer admin: guard has no administrator")
	}
	if err := owner.Authorize(ctx, caller); err != nil {
		return err
	}
	if next == (common.Address{}) {
		return fmt.Errorf("%w: zero address", ledger.ErrInvalidAddress)
	}
	if store, ok := l.journal.(AdminStore); ok {
		if err := store.SaveAdmin(ctx, next); err != nil {
			return fmt.Errorf("transfer admin: %w", err)
		}
	}
	return owner.TransferOwnership(caller, next)
}
