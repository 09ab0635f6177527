package engine

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/wardledger/pkg/schema"
)

func TestMetrics_CountsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	l := newTestLedger(t, WithMetrics(m))
	ctx := context.Background()

	proposeN(t, l, 2)
	_, _ = l.Propose(ctx, stranger, "ipfs://x")
	_ = l.UpdateStatus(ctx, admin, 0, schema.Ongoing, "")
	_ = l.UpdateStatus(ctx, admin, 1, schema.Completed, "ipfs://r")
	_ = l.Transfer(ctx, admin, 0, stranger)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("propose", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("propose", "unauthorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("update_status", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("update_status", "illegal_transition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("transfer", "transfer_not_allowed")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("Upcoming")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("Ongoing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.records.WithLabelValues("Completed")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 2)
}

func TestMetrics_ResetOnRestore(t *testing.T) {
	j, _ := openTestJournal(t)
	ctx := context.Background()
	l := newTestLedger(t, WithJournal(j))
	driveTo(t, l, schema.Completed)
	driveTo(t, l, schema.Cancelled)
	proposeN(t, l, 1)

	m := NewMetrics(nil)
	_, err := Restore(ctx, NewAdminGuard(admin), WithJournal(j), WithMetrics(m))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("Completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("Cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("Upcoming")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.observe("propose", nil)
	m.created()
	m.transitioned(schema.Upcoming, schema.Ongoing)
	m.reset(nil)
}
