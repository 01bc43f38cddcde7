package statsindex

import (
	"context"
	"testing"

	"github.com/goran-ethernal/IndexSync/internal/indexes"
	"github.com/goran-ethernal/IndexSync/internal/testutil"
	"github.com/goran-ethernal/IndexSync/internal/testutil/enginetest"
	"github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/goran-ethernal/IndexSync/pkg/index"
	"github.com/stretchr/testify/require"
)

const txGas = 21000

func TestStatsIndex_Totals(t *testing.T) {
	env := enginetest.New(t, false)
	blocks := testutil.NewChain(nil, 100, 4, 3, 0)
	env.Process(blocks...)

	idx, err := New("", env.Deps())
	require.NoError(t, err)
	env.Start(idx)

	rec, err := idx.StatsAt(102)
	require.NoError(t, err)
	require.Equal(t, &Stats{
		BlockHash:         blocks[2].Hash(),
		BlockNumber:       102,
		BlockTransactions: 3,
		BlockGasUsed:      3 * txGas,
		BlockLogs:         3,
		Blocks:            3,
		Transactions:      9,
		GasUsed:           9 * txGas,
		Logs:              9,
	}, rec)

	require.Equal(t, uint64(4), idx.Totals().Blocks)

	committed, err := idx.Lookup(context.Background(), TipKey)
	require.NoError(t, err)
	require.Equal(t, uint64(12), committed.(*Stats).Transactions)
}

func TestStatsIndex_RewindRestoresTotals(t *testing.T) {
	env := enginetest.New(t, false)
	main := testutil.NewChain(nil, 0, 5, 2, 0)
	env.Process(main...)

	idx, err := New("stats", env.Deps())
	require.NoError(t, err)
	env.Start(idx)

	// A shorter branch without transactions wins from height 2.
	alt := testutil.NewChain(main[1].Block, 0, 1, 0, 3)
	env.Process(alt...)
	env.Sync()

	totals := idx.Totals()
	require.Equal(t, alt[0].Hash(), totals.BlockHash)
	require.Equal(t, uint64(3), totals.Blocks)
	require.Equal(t, uint64(4), totals.Transactions)

	for _, h := range []uint64{3, 4} {
		_, err := idx.StatsAt(h)
		require.ErrorIs(t, err, index.ErrNotFound)
	}

	committed, err := idx.Committed()
	require.NoError(t, err)
	require.Equal(t, main[1].Hash(), committed.BlockHash, "the rewind checkpoints at the fork point")
}

func TestStatsIndex_Restart(t *testing.T) {
	env := enginetest.New(t, false)
	blocks := testutil.NewChain(nil, 0, 6, 1, 0)
	env.Process(blocks[:2]...)

	first, err := New("stats", env.Deps())
	require.NoError(t, err)
	eng := env.Start(first)
	eng.Interrupt()
	eng.Stop()

	env.Process(blocks[2:]...)
	second, err := New("stats", env.Deps())
	require.NoError(t, err)
	env.Start(second)

	require.Equal(t, uint64(6), second.Totals().Blocks)
	require.Equal(t, uint64(6), second.Totals().Transactions)
}

func TestStatsIndex_Lookup(t *testing.T) {
	env := enginetest.New(t, false)
	idx, err := index.Create(Type, config.IndexConfig{Name: "stats"}, env.Deps())
	require.NoError(t, err)
	q := idx.(index.Queryable)

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{name: "hash is rejected", key: testutil.TransferTopic.Hex(), wantErr: indexes.ErrInvalidKey},
		{name: "missing height", key: "7", wantErr: index.ErrNotFound},
		{name: "nothing committed", key: TipKey, wantErr: index.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.Lookup(context.Background(), tt.key)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
