package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/wardledger/pkg/schema"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	epoch    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

// newTestLedger returns an in-memory ledger administered by admin with deterministic ids and time.
func newTestLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	n := 0
	base := []Option{
		WithClock(func() time.Time { return epoch }),
		WithEventIDs(func() string {
			n++
			return fmt.Sprintf("ev-%d", n)
		}),
	}
	return New(NewAdminGuard(admin), append(base, opts...)...)
}

// proposeN creates n records with URIs "ipfs://p<i>".
func proposeN(t *testing.T, l *Ledger, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := l.Propose(context.Background(), admin, fmt.Sprintf("ipfs://p%d", i))
		require.NoError(t, err)
	}
}

// driveTo moves a fresh record to status s through legal transitions and returns its id.
func driveTo(t *testing.T, l *Ledger, s schema.Status) uint64 {
	t.Helper()
	ctx := context.Background()
	id, err := l.Propose(ctx, admin, "ipfs://proposal")
	require.NoError(t, err)

	switch s {
	case schema.Ongoing:
		require.NoError(t, l.UpdateStatus(ctx, admin, id, schema.Ongoing, ""))
	case schema.Cancelled:
		require.NoError(t, l.UpdateStatus(ctx, admin, id, schema.Cancelled, ""))
	case schema.Completed:
		require.NoError(t, l.UpdateStatus(ctx, admin, id, schema.Ongoing, ""))
		require.NoError(t, l.UpdateStatus(ctx, admin, id, schema.Completed, "ipfs://report"))
	}
	return id
}

type failingJournal struct {
	err      error
	appended int
}

func (j *failingJournal) Append(context.Context, []schema.Event) error {
	j.appended++
	return j.err
}

func (j *failingJournal) Load(context.Context) ([]schema.Event, error) {
	return nil, j.err
}
