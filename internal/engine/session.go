package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/celerix-dev/wardledger/pkg/schema"
)

// Session pins a caller identity so writes read like the remote SDK client.
type Session struct {
	ledger *Ledger
	caller common.Address
}

// Caller returns the identity the session acts for.
func (s *Session) Caller() common.Address {
	return s.caller
}

func (s *Session) Propose(ctx context.Context, proposalURI string) (uint64, error) {
	return s.ledger.Propose(ctx, s.caller, proposalURI)
}

func (s *Session) UpdateStatus(ctx context.Context, id uint64, next schema.Status, reportURI string) error {
	return s.ledger.UpdateStatus(ctx, s.caller, id, next, reportURI)
}

func (s *Session) Transfer(ctx context.Context, id uint64, to common.Address) error {
	return s.ledger.Transfer(ctx, s.caller, id, to)
}

// TransferAdmin hands the administrator role to next.
func (s *Session) TransferAdmin(ctx context.Context, next common.Address) error {
	return s.ledger.TransferAdmin(ctx, s.caller, next)
}

func (s *Session) Admin(ctx context.Context) (common.Address, error) {
	return s.ledger.Admin(ctx)
}

func (s *Session) Get(ctx context.Context, id uint64) (schema.Record, error) {
	return s.ledger.Get(ctx, id)
}

func (s *Session) Count(ctx context.Context) (uint64, error) {
	return s.ledger.Count(ctx)
}

func (s *Session) List(ctx context.Context, pageSize, pageNumber uint64) (schema.Page, error) {
	return s.ledger.List(ctx, pageSize, pageNumber)
}

func (s *Session) Events(ctx context.Context, after uint64, limit int) ([]schema.Event, error) {
	return s.ledger.Events(ctx, after, limit)
}

// Close is a no-op; it lets an embedded session stand in for a remote client.
func (s *Session) Close() error {
	return nil
}
