package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/wardledger/pkg/schema"
)

func TestMigrate_CopiesEveryStatus(t *testing.T) {
	ctx := context.Background()
	src := newTestLedger(t)
	for _, s := range schema.AllStatuses() {
		driveTo(t, src, s)
	}

	dst := newTestLedger(t)
	require.NoError(t, Migrate(ctx, src, dst.As(admin)))

	want, err := src.List(ctx, 10, 0)
	require.NoError(t, err)
	got, err := dst.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMigrate_RefusesNonEmptyDestination(t *testing.T) {
	ctx := context.Background()
	src := newTestLedger(t)
	proposeN(t, src, 1)
	dst := newTestLedger(t)
	proposeN(t, dst, 1)

	assert.Error(t, Migrate(ctx, src, dst.As(admin)))
}

func TestMigrate_RequiresAdministrator(t *testing.T) {
	ctx := context.Background()
	src := newTestLedger(t)
	proposeN(t, src, 2)
	dst := newTestLedger(t)

	assert.Error(t, Migrate(ctx, src, dst.As(stranger)))
	count, _ := dst.Count(ctx)
	assert.Zero(t, count)
}

func TestMigrate_EmptySource(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, Migrate(ctx, newTestLedger(t), newTestLedger(t).As(admin)))
}
