package sdk

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/celerix-dev/wardledger/pkg/schema"
)

// --- Functional Interfaces (Interface Segregation) ---

// Reader is the public, unguarded side of the ledger.
type Reader interface {
	Get(ctx context.Context, id uint64) (schema.Record, error)
	Count(ctx context.Context) (uint64, error)
	List(ctx context.Context, pageSize, pageNumber uint64) (schema.Page, error)
	Events(ctx context.Context, after uint64, limit int) ([]schema.Event, error)
	Admin(ctx context.Context) (common.Address, error)
}

// Writer mutates the ledger on behalf of an identity the implementation already holds.
type Writer interface {
	Propose(ctx context.Context, proposalURI string) (uint64, error)
	UpdateStatus(ctx context.Context, id uint64, status schema.Status, reportURI string) error
	Transfer(ctx context.Context, id uint64, to common.Address) error
	TransferAdmin(ctx context.Context, next common.Address) error
}

// --- Composite Interfaces ---

// Ledger is what applications program against, whether the ledger is remote or embedded.
type Ledger interface {
	Reader
	Writer
	Close() error
}

// Backend is the host-side ledger the transports serve. Writes name their caller explicitly;
// the transport is responsible for proving it.
type Backend interface {
	Reader
	Propose(ctx context.Context, caller common.Address, proposalURI string) (uint64, error)
	UpdateStatus(ctx context.Context, caller common.Address, id uint64, status schema.Status, reportURI string) error
	Transfer(ctx context.Context, caller common.Address, id uint64, to common.Address) error
	TransferAdmin(ctx context.Context, caller, next common.Address) error
}
