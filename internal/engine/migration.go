package engine

import (
	"context"
	"fmt"

	"github.com/celerix-dev/wardledger/pkg/schema"
)

// Source is the read side Migrate needs. Both a Ledger and a remote client provide it.
type Source interface {
	Count(ctx context.Context) (uint64, error)
	Get(ctx context.Context, id uint64) (schema.Record, error)
}

// Destination is the write side Migrate needs: a caller-pinned ledger such as a Session,
// an embedded ledger or a remote client.
type Destination interface {
	Count(ctx context.Context) (uint64, error)
	Propose(ctx context.Context, proposalURI string) (uint64, error)
	UpdateStatus(ctx context.Context, id uint64, status schema.Status, reportURI string) error
}

// Migrate copies every record of src into the empty ledger dst.
// Each record is rebuilt through legal transitions, so ids and lifecycle history line up.
// This works for:
// - Remote -> Embedded (offline backup)
// - Embedded -> a fresh daemon's data directory
func Migrate(ctx context.Context, src Source, dst Destination) error {
	existing, err := dst.Count(ctx)
	if err != nil {
		return err
	}
	if existing != 0 {
		return fmt.Errorf("migrate: destination already holds %d records", existing)
	}

	total, err := src.Count(ctx)
	if err != nil {
		return fmt.Errorf("migrate: count source: %w", err)
	}

	for id := uint64(0); id < total; id++ {
		rec, err := src.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("migrate: read record %d: %w", id, err)
		}
		if err := copyRecord(ctx, dst, rec); err != nil {
			return fmt.Errorf("migrate: record %d: %w", id, err)
		}
	}
	return nil
}

func copyRecord(ctx context.Context, dst Destination, rec schema.Record) error {
	id, err := dst.Propose(ctx, rec.ProposalURI)
	if err != nil {
		return err
	}
	if id != rec.ID {
		return fmt.Errorf("assigned id %d", id)
	}

	var path []schema.Status
	switch rec.Status {
	case schema.Upcoming:
	case schema.Ongoing:
		path = []schema.Status{schema.Ongoing}
	case schema.Cancelled:
		path = []schema.Status{schema.Cancelled}
	case schema.Completed:
		path = []schema.Status{schema.Ongoing, schema.Completed}
	default:
		return fmt.Errorf("unknown status %s", rec.Status)
	}

	for _, next := range path {
		if err := dst.UpdateStatus(ctx, id, next, rec.ReportURI); err != nil {
			return err
		}
	}
	return nil
}
