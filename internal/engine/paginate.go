package engine

import (
	"context"
	"fmt"

	"github.com/celerix-dev/wardledger/pkg/ledger"
	"github.com/celerix-dev/wardledger/pkg/schema"
)

// List returns page pageNumber of size pageSize, newest record first.
// Entry i holds id total-1-start-i where start = pageNumber*pageSize.
func (l *Ledger) List(_ context.Context, pageSize, pageNumber uint64) (schema.Page, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	page, err := paginate(l.records, pageSize, pageNumber)
	l.metrics.observe("list", err)
	return page, err
}

func paginate(records []schema.Record, pageSize, pageNumber uint64) (schema.Page, error) {
	total := uint64(len(records))
	if total == 0 {
		return schema.Page{}, ledger.ErrEmptyStore
	}
	// pageNumber*pageSize >= total, without overflowing the product.
	if pageSize == 0 || pageNumber > (total-1)/pageSize {
		return schema.Page{}, fmt.Errorf("%w: page %d of size %d over %d records",
			ledger.ErrPageOutOfBounds, pageNumber, pageSize, total)
	}

	start := pageNumber * pageSize
	end := min(start+pageSize, total)
	if end < start {
		end = total
	}
	n := end - start

	page := schema.Page{
		IDs:          make([]uint64, n),
		Statuses:     make([]schema.Status, n),
		ProposalURIs: make([]string, n),
		ReportURIs:   make([]string, n),
	}
	for i := uint64(0); i < n; i++ {
		rec := records[total-1-start-i]
		page.IDs[i] = rec.ID
		page.Statuses[i] = rec.Status
		page.ProposalURIs[i] = rec.ProposalURI
		page.ReportURIs[i] = rec.ReportURI
	}
	return page, nil
}
