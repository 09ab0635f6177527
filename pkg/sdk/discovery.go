package sdk

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/celerix-dev/wardledger/internal/engine"
	"github.com/celerix-dev/wardledger/internal/vault"
)

// Config selects and configures a ledger.
type Config struct {
	// Addr of a remote daemon. Empty means WARDLEDGER_ADDR; if that is empty too, the ledger is embedded.
	Addr string
	// DataDir holds the embedded ledger's journal.
	DataDir string
	// Key signs writes. Optional for read-only use.
	Key *ecdsa.PrivateKey
	// Admin of an embedded ledger. A new ledger is bound to it, or to the address of Key when
	// it is zero; an existing ledger keeps its administrator and refuses a different Admin.
	Admin common.Address
	// Insecure dials plain TCP.
	Insecure bool
}

// New initializes a ledger based on the configuration and environment.
// It returns the interface, so the app doesn't care if it's local or remote.
func New(ctx context.Context, cfg Config) (Ledger, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = os.Getenv("WARDLEDGER_ADDR")
	}

	if addr != "" {
		var opts []ClientOption
		if cfg.Key != nil {
			opts = append(opts, WithSigner(cfg.Key))
		}
		if cfg.Insecure {
			opts = append(opts, WithoutTLS())
		}
		return Connect(addr, opts...)
	}

	return OpenEmbedded(ctx, cfg)
}

// Embedded is an in-process ledger backed by a journal in a local data directory.
// It uses the same engine the daemon uses.
type Embedded struct {
	*engine.Session
	journal *engine.SQLiteJournal
}

// OpenEmbedded restores the ledger in cfg.DataDir and acts as cfg.Key's address.
// Writes are admitted only for the administrator bound to the data directory.
func OpenEmbedded(ctx context.Context, cfg Config) (*Embedded, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("embedded ledger: data dir required")
	}

	var caller common.Address
	if cfg.Key != nil {
		caller = vault.Address(cfg.Key)
	}

	journal, err := engine.OpenJournal(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	admin, err := engine.BindAdmin(ctx, journal, cfg.Admin, caller)
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("embedded ledger: %w", err)
	}
	l, err := engine.Restore(ctx, engine.NewAdminGuard(admin), engine.WithJournal(journal))
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("embedded ledger: %w", err)
	}

	return &Embedded{Session: l.As(caller), journal: journal}, nil
}

// Close releases the journal.
func (e *Embedded) Close() error {
	return e.journal.Close()
}
