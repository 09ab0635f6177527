package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/celerix-dev/wardledger/pkg/ledger"
	"github.com/celerix-dev/wardledger/pkg/schema"
)

// Ledger is the authoritative store of project records.
// Mutations are serialized and either commit fully (journal, records, events) or not at all.
type Ledger struct {
	mu      sync.RWMutex
	records []schema.Record
	events  []schema.Event

	guard   Authorizer
	journal Journal
	metrics *Metrics
	log     *slog.Logger
	now     func() time.Time
	nextID  func() string
}

// New returns an empty ledger whose writes are admitted by guard.
func New(guard Authorizer, opts ...Option) *Ledger {
	l := &Ledger{
		guard:  guard,
		log:    slog.New(slog.DiscardHandler),
		now:    utcNow,
		nextID: newEventID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore builds a ledger by replaying its journal.
// Every replayed event is checked against the lifecycle, so a tampered journal fails to load.
func Restore(ctx context.Context, guard Authorizer, opts ...Option) (*Ledger, error) {
	l := New(guard, opts...)
	if l.journal == nil {
		return l, nil
	}

	events, err := l.journal.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	for _, ev := range events {
		if err := l.replay(ev); err != nil {
			return nil, fmt.Errorf("restore: event %d: %w", ev.Seq, err)
		}
	}
	for _, rec := range l.records {
		if (rec.ReportURI != "") != (rec.Status == schema.Completed) {
			return nil, fmt.Errorf("restore: record %d is %s with report %q", rec.ID, rec.Status, rec.ReportURI)
		}
	}

	l.metrics.reset(l.records)
	l.log.Info("ledger restored", "records", len(l.records), "events", len(l.events))
	return l, nil
}

// Propose creates a new Upcoming record and returns its id.
func (l *Ledger) Propose(ctx context.Context, caller common.Address, proposalURI string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, err := l.propose(ctx, caller, proposalURI)
	l.metrics.observe("propose", err)
	if err != nil {
		l.log.Debug("propose rejected", "caller", caller.Hex(), "error", err)
	}
	return id, err
}

func (l *Ledger) propose(ctx context.Context, caller common.Address, proposalURI string) (uint64, error) {
	if err := l.guard.Authorize(ctx, caller); err != nil {
		return 0, err
	}
	uri := strings.TrimSpace(proposalURI)
	if uri == "" {
		return 0, ledger.ErrEmptyReference
	}

	id := uint64(len(l.records))
	events := l.stamp(caller, schema.Event{
		Kind:     schema.EventRecordCreated,
		RecordID: id,
		Status:   schema.Upcoming,
		URI:      uri,
	})
	if err := l.commit(ctx, events); err != nil {
		return 0, err
	}

	l.records = append(l.records, schema.Record{ID: id, Status: schema.Upcoming, ProposalURI: uri})
	l.metrics.created()
	l.log.Info("record created", "id", id, "proposal_uri", uri)
	return id, nil
}

// UpdateStatus moves record id to next. Completing requires a report URI,
// which is attached in the same commit. A report given for any other status is ignored.
func (l *Ledger) UpdateStatus(ctx context.Context, caller common.Address, id uint64, next schema.Status, reportURI string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.updateStatus(ctx, caller, id, next, reportURI)
	l.metrics.observe("update_status", err)
	if err != nil {
		l.log.Debug("status update rejected", "caller", caller.Hex(), "id", id, "status", next, "error", err)
	}
	return err
}

func (l *Ledger) updateStatus(ctx context.Context, caller common.Address, id uint64, next schema.Status, reportURI string) error {
	if err := l.guard.Authorize(ctx, caller); err != nil {
		return err
	}
	if id >= uint64(len(l.records)) {
		return fmt.Errorf("%w: %d", ledger.ErrNotFound, id)
	}

	report := strings.TrimSpace(reportURI)
	if next == schema.Completed && report == "" {
		return fmt.Errorf("%w: record %d", ledger.ErrReportRequired, id)
	}

	current := l.records[id]
	if !Allowed(current.Status, next) {
		return fmt.Errorf("%w: record %d %s -> %s", ledger.ErrIllegalTransition, id, current.Status, next)
	}

	updated := current
	updated.Status = next
	pending := []schema.Event{{Kind: schema.EventStatusChanged, RecordID: id, Status: next}}
	if next == schema.Completed {
		updated.ReportURI = report
		pending = append(pending, schema.Event{
			Kind:     schema.EventReportAttached,
			RecordID: id,
			Status:   schema.Completed,
			URI:      report,
		})
	}

	if err := l.commit(ctx, l.stamp(caller, pending...)); err != nil {
		return err
	}

	l.records[id] = updated
	l.metrics.transitioned(current.Status, next)
	l.log.Info("status changed", "id", id, "from", current.Status, "to", next)
	return nil
}

// Transfer refuses every custody change. Records stay bound to the ledger that created them.
func (l *Ledger) Transfer(_ context.Context, caller common.Address, id uint64, to common.Address) error {
	err := fmt.Errorf("%w: record %d", ledger.ErrTransferNotAllowed, id)
	l.metrics.observe("transfer", err)
	l.log.Warn("transfer refused", "caller", caller.Hex(), "id", id, "to", to.Hex())
	return err
}

// Get returns a snapshot of record id.
func (l *Ledger) Get(_ context.Context, id uint64) (schema.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if id >= uint64(len(l.records)) {
		return schema.Record{}, fmt.Errorf("%w: %d", ledger.ErrNotFound, id)
	}
	return l.records[id], nil
}

// Count returns the number of records ever created, which is also the next id.
func (l *Ledger) Count(context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.records)), nil
}

// Events returns committed events with Seq greater than after, oldest first.
// A limit of zero or less returns everything available.
func (l *Ledger) Events(_ context.Context, after uint64, limit int) ([]schema.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if after >= uint64(len(l.events)) {
		return []schema.Event{}, nil
	}
	tail := l.events[after:]
	if limit > 0 && limit < len(tail) {
		tail = tail[:limit]
	}
	out := make([]schema.Event, len(tail))
	copy(out, tail)
	return out, nil
}

// As returns a view of the ledger that acts for caller.
func (l *Ledger) As(caller common.Address) *Session {
	return &Session{ledger: l, caller: caller}
}

// stamp assigns sequence numbers, ids, actor and time to pending events.
// It MUST be called while holding l.mu.Lock.
func (l *Ledger) stamp(caller common.Address, pending ...schema.Event) []schema.Event {
	at := l.now()
	base := uint64(len(l.events))
	for i := range pending {
		pending[i].Seq = base + uint64(i) + 1
		pending[i].ID = l.nextID()
		pending[i].Actor = caller.Hex()
		pending[i].At = at
	}
	return pending
}

// commit makes events durable and visible. Nothing changes when the journal refuses them.
// It MUST be called while holding l.mu.Lock.
func (l *Ledger) commit(ctx context.Context, events []schema.Event) error {
	if l.journal != nil {
		if err := l.journal.Append(ctx, events); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	l.events = append(l.events, events...)
	return nil
}

func (l *Ledger) replay(ev schema.Event) error {
	if ev.Seq != uint64(len(l.events))+1 {
		return fmt.Errorf("expected seq %d", len(l.events)+1)
	}

	switch ev.Kind {
	case schema.EventRecordCreated:
		if ev.RecordID != uint64(len(l.records)) {
			return fmt.Errorf("record id %d out of order", ev.RecordID)
		}
		if strings.TrimSpace(ev.URI) == "" {
			return ledger.ErrEmptyReference
		}
		l.records = append(l.records, schema.Record{ID: ev.RecordID, Status: schema.Upcoming, ProposalURI: ev.URI})

	case schema.EventStatusChanged:
		if ev.RecordID >= uint64(len(l.records)) {
			return fmt.Errorf("%w: %d", ledger.ErrNotFound, ev.RecordID)
		}
		rec := &l.records[ev.RecordID]
		if !Allowed(rec.Status, ev.Status) {
			return fmt.Errorf("%w: %s -> %s", ledger.ErrIllegalTransition, rec.Status, ev.Status)
		}
		rec.Status = ev.Status

	case schema.EventReportAttached:
		if ev.RecordID >= uint64(len(l.records)) {
			return fmt.Errorf("%w: %d", ledger.ErrNotFound, ev.RecordID)
		}
		rec := &l.records[ev.RecordID]
		if rec.Status != schema.Completed || rec.ReportURI != "" || ev.URI == "" {
			return errors.New("report attached outside completion")
		}
		rec.ReportURI = ev.URI

	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	l.events = append(l.events, ev)
	return nil
}
