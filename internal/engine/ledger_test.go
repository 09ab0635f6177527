package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/wardledger/pkg/ledger"
	"github.com/celerix-dev/wardledger/pkg/schema"
)

func TestPropose_SequentialIDs(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	for want := uint64(0); want < 5; want++ {
		id, err := l.Propose(ctx, admin, fmt.Sprintf("ipfs://p%d", want))
		require.NoError(t, err)
		assert.Equal(t, want, id)

		count, err := l.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, want+1, count)
	}

	rec, err := l.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, schema.Record{ID: 3, Status: schema.Upcoming, ProposalURI: "ipfs://p3"}, rec)
}

func TestPropose_EmptyReference(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	for _, uri := range []string{"", "   ", "\t\n"} {
		_, err := l.Propose(ctx, admin, uri)
		assert.ErrorIs(t, err, ledger.ErrEmptyReference)
	}

	count, _ := l.Count(ctx)
	assert.Zero(t, count)
	events, _ := l.Events(ctx, 0, 0)
	assert.Empty(t, events)
}

func TestPropose_TrimsReference(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	id, err := l.Propose(ctx, admin, "  ipfs://spaced \n")
	require.NoError(t, err)
	rec, _ := l.Get(ctx, id)
	assert.Equal(t, "ipfs://spaced", rec.ProposalURI)
}

func TestPropose_Unauthorized(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Propose(ctx, stranger, "ipfs://p")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, err = l.Propose(ctx, common.Address{}, "ipfs://p")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	count, _ := l.Count(ctx)
	assert.Zero(t, count)
}

func TestPropose_GuardRunsBeforeValidation(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Propose(context.Background(), stranger, "")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}

func TestPropose_EmitsRecordCreated(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Propose(ctx, admin, "ipfs://p0")
	require.NoError(t, err)

	events, err := l.Events(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, schema.Event{
		Seq:      1,
		ID:       "ev-1",
		Kind:     schema.EventRecordCreated,
		RecordID: 0,
		Status:   schema.Upcoming,
		URI:      "ipfs://p0",
		Actor:    admin.Hex(),
		At:       epoch,
	}, events[0])
}

func TestUpdateStatus_TransitionGrid(t *testing.T) {
	for _, from := range schema.AllStatuses() {
		for _, to := range schema.AllStatuses() {
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				l := newTestLedger(t)
				ctx := context.Background()
				id := driveTo(t, l, from)
				before, _ := l.Get(ctx, id)

				err := l.UpdateStatus(ctx, admin, id, to, "ipfs://x")
				after, _ := l.Get(ctx, id)

				if Allowed(from, to) {
					require.NoError(t, err)
					assert.Equal(t, to, after.Status)
					return
				}
				assert.ErrorIs(t, err, ledger.ErrIllegalTransition)
				assert.Equal(t, before, after)
			})
		}
	}
}

func TestUpdateStatus_CompleteRequiresReport(t *testing.T) {
	for _, from := range schema.AllStatuses() {
		t.Run(from.String(), func(t *testing.T) {
			l := newTestLedger(t)
			ctx := context.Background()
			id := driveTo(t, l, from)

			err := l.UpdateStatus(ctx, admin, id, schema.Completed, "")
			assert.ErrorIs(t, err, ledger.ErrReportRequired)

			err = l.UpdateStatus(ctx, admin, id, schema.Completed, "   ")
			assert.ErrorIs(t, err, ledger.ErrReportRequired)
		})
	}
}

func TestUpdateStatus_CompleteFromOngoing(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	id := driveTo(t, l, schema.Ongoing)

	require.NoError(t, l.UpdateStatus(ctx, admin, id, schema.Completed, "ipfs://x"))

	rec, err := l.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, schema.Completed, rec.Status)
	assert.Equal(t, "ipfs://x", rec.ReportURI)
}

func TestUpdateStatus_UpcomingCannotSkipToCompleted(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	proposeN(t, l, 1)

	err := l.UpdateStatus(ctx, admin, 0, schema.Completed, "r")
	assert.ErrorIs(t, err, ledger.ErrIllegalTransition)

	rec, _ := l.Get(ctx, 0)
	assert.Equal(t, schema.Upcoming, rec.Status)
	assert.Empty(t, rec.ReportURI)
}

func TestUpdateStatus_ReportIgnoredUnlessCompleting(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	proposeN(t, l, 1)

	require.NoError(t, l.UpdateStatus(ctx, admin, 0, schema.Ongoing, "ipfs://early"))
	rec, _ := l.Get(ctx, 0)
	assert.Empty(t, rec.ReportURI)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	err := l.UpdateStatus(ctx, admin, 0, schema.Ongoing, "")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	proposeN(t, l, 2)
	err = l.UpdateStatus(ctx, admin, 2, schema.Ongoing, "")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestUpdateStatus_Unauthorized(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	proposeN(t, l, 1)

	err := l.UpdateStatus(ctx, stranger, 0, schema.Ongoing, "")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	rec, _ := l.Get(ctx, 0)
	assert.Equal(t, schema.Upcoming, rec.Status)
}

func TestUpdateStatus_EventsOnCompletion(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	id := driveTo(t, l, schema.Completed)

	events, err := l.Events(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 4)

	kinds := make([]schema.EventKind, len(events))
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.Equal(t, id, ev.RecordID)
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []schema.EventKind{
		schema.EventRecordCreated,
		schema.EventStatusChanged,
		schema.EventStatusChanged,
		schema.EventReportAttached,
	}, kinds)
	assert.Equal(t, schema.Completed, events[2].Status)
	assert.Equal(t, "ipfs://report", events[3].URI)
}

func TestCommit_JournalFailureLeavesNoTrace(t *testing.T) {
	j := &failingJournal{err: errors.New("disk full")}
	l := newTestLedger(t, WithJournal(j))
	ctx := context.Background()

	_, err := l.Propose(ctx, admin, "ipfs://p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, j.appended)

	count, _ := l.Count(ctx)
	assert.Zero(t, count)
	events, _ := l.Events(ctx, 0, 0)
	assert.Empty(t, events)
}

func TestCommit_JournalFailureOnCompletion(t *testing.T) {
	j := &failingJournal{}
	l := newTestLedger(t, WithJournal(j))
	ctx := context.Background()
	id := driveTo(t, l, schema.Ongoing)

	j.err = errors.New("io error")
	err := l.UpdateStatus(ctx, admin, id, schema.Completed, "ipfs://r")
	require.Error(t, err)

	rec, _ := l.Get(ctx, id)
	assert.Equal(t, schema.Ongoing, rec.Status)
	assert.Empty(t, rec.ReportURI)

	events, _ := l.Events(ctx, 0, 0)
	assert.Len(t, events, 2)
}

func TestTransfer_AlwaysRefused(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	proposeN(t, l, 1)

	for _, caller := range []common.Address{admin, stranger, {}} {
		err := l.Transfer(ctx, caller, 0, stranger)
		assert.ErrorIs(t, err, ledger.ErrTransferNotAllowed)
	}
	err := l.Transfer(ctx, admin, 99, stranger)
	assert.ErrorIs(t, err, ledger.ErrTransferNotAllowed)

	rec, _ := l.Get(ctx, 0)
	assert.Equal(t, schema.Upcoming, rec.Status)
	events, _ := l.Events(ctx, 0, 0)
	assert.Len(t, events, 1)
}

func TestGet_NotFound(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Get(context.Background(), 0)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestEvents_AfterAndLimit(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	proposeN(t, l, 5)

	events, err := l.Events(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(3), events[0].Seq)
	assert.Equal(t, uint64(4), events[1].Seq)

	events, err = l.Events(ctx, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = l.Events(ctx, 100, 10)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestLedger_IndependentInstances(t *testing.T) {
	a := newTestLedger(t)
	b := newTestLedger(t)
	proposeN(t, a, 3)

	count, _ := b.Count(context.Background())
	assert.Zero(t, count)
}

func TestLedger_ConcurrentProposals(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	const workers, perWorker = 8, 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, _ = l.Propose(ctx, admin, "ipfs://c")
				_, _ = l.List(ctx, 10, 0)
			}
		}()
	}
	wg.Wait()

	count, _ := l.Count(ctx)
	assert.Equal(t, uint64(workers*perWorker), count)
	for id := uint64(0); id < count; id++ {
		rec, err := l.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.ID)
	}
}

func TestSession_ActsForCaller(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	s := l.As(admin)
	assert.Equal(t, admin, s.Caller())

	id, err := s.Propose(ctx, "ipfs://s")
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, id, schema.Cancelled, ""))

	rec, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, schema.Cancelled, rec.Status)

	_, err = l.As(stranger).Propose(ctx, "ipfs://nope")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	assert.ErrorIs(t, s.Transfer(ctx, id, stranger), ledger.ErrTransferNotAllowed)
	assert.NoError(t, s.Close())
}

func TestLedger_CustomAuthorizer(t *testing.T) {
	allowAll := AuthorizerFunc(func(context.Context, common.Address) error { return nil })
	l := New(allowAll)

	id, err := l.Propose(context.Background(), stranger, "ipfs://open")
	require.NoError(t, err)
	assert.Zero(t, id)
}
