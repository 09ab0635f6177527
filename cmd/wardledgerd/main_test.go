package main

import (
	"context"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/wardledger/internal/config"
	"github.com/celerix-dev/wardledger/internal/engine"
	"github.com/celerix-dev/wardledger/internal/logging"
	"github.com/celerix-dev/wardledger/pkg/ledger"
)

var (
	firstAdmin  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	secondAdmin = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestOpenEngine_RefusesAdminThatDisagreesWithJournal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	log := logging.New(io.Discard, "error")

	l, journal, err := openEngine(ctx, &config.Config{Admin: firstAdmin, DataDir: dir}, log, engine.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	_, err = l.Propose(ctx, firstAdmin, "ipfs://p0")
	require.NoError(t, err)
	require.NoError(t, journal.Close())

	_, _, err = openEngine(ctx, &config.Config{Admin: secondAdmin, DataDir: dir}, log, engine.NewMetrics(prometheus.NewRegistry()))
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	l, journal, err = openEngine(ctx, &config.Config{Admin: firstAdmin, DataDir: dir}, log, engine.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer journal.Close()
	count, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
