// Package engine implements the ward ledger: an append-only store of project records
// with a guarded, lifecycle-checked mutation path and newest-first pagination.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/celerix-dev/wardledger/pkg/schema"
)

// Journal durably records committed events.
// Append must be all-or-nothing: either every event of the batch is stored or none is.
type Journal interface {
	Append(ctx context.Context, events []schema.Event) error
	Load(ctx context.Context) ([]schema.Event, error)
}

// AdminStore remembers who administers a journal, so the role survives restarts.
// A Journal that also implements AdminStore gets administrator rotations persisted.
type AdminStore interface {
	LoadAdmin(ctx context.Context) (common.Address, bool, error)
	SaveAdmin(ctx context.Context, admin common.Address) error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithJournal persists every committed mutation before it becomes visible.
func WithJournal(j Journal) Option {
	return func(l *Ledger) { l.journal = j }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log.With("component", "ledger") }
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithEventIDs overrides the event id generator.
func WithEventIDs(next func() string) Option {
	return func(l *Ledger) { l.nextID = next }
}

func newEventID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func utcNow() time.Time {
	return time.Now().UTC()
}
