package filterindex

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goran-ethernal/IndexSync/internal/indexes"
	"github.com/goran-ethernal/IndexSync/internal/testutil"
	"github.com/goran-ethernal/IndexSync/internal/testutil/enginetest"
	"github.com/goran-ethernal/IndexSync/pkg/chain"
	"github.com/goran-ethernal/IndexSync/pkg/index"
	"github.com/stretchr/testify/require"
)

// expectedHeaders recomputes the header chain of blocks from scratch.
func expectedHeaders(blocks []testutil.Block, prev common.Hash) []common.Hash {
	headers := make([]common.Hash, 0, len(blocks))
	for _, b := range blocks {
		bloom := BuildFilter(b.Block, b.Receipts)
		prev = NextHeader(crypto.Keccak256Hash(bloom.Bytes()), prev)
		headers = append(headers, prev)
	}
	return headers
}

func TestBuildFilter(t *testing.T) {
	b := testutil.NewChain(nil, 0, 1, 2, 0)[0]
	bloom := BuildFilter(b.Block, b.Receipts)

	require.True(t, bloom.Test(testutil.Address(0).Bytes()))
	require.True(t, bloom.Test(testutil.Address(1).Bytes()))
	require.True(t, bloom.Test(testutil.TransferTopic.Bytes()))
	require.False(t, bloom.Test(common.HexToAddress("0xdeadbeef").Bytes()))

	// Blocks without transactions have an empty filter.
	empty := testutil.NewChain(nil, 0, 1, 0, 0)[0]
	require.Equal(t, [256]byte{}, [256]byte(BuildFilter(empty.Block, nil)))
}

func TestFilterIndex_HeaderChain(t *testing.T) {
	env := enginetest.New(t, false)
	blocks := testutil.NewChain(nil, 0, 6, 2, 0)
	env.Process(blocks...)

	idx, err := New("", env.Deps())
	require.NoError(t, err)
	eng := env.Start(idx)

	headers := expectedHeaders(blocks, common.Hash{})
	for i, b := range blocks {
		f, err := idx.FilterByHeight(b.NumberU64())
		require.NoError(t, err)
		require.Equal(t, b.Hash(), f.BlockHash)
		require.Equal(t, headers[i], f.Header)
		require.True(t, f.Matches(testutil.TransferTopic.Bytes()))
	}

	tipKey, tipHeader, err := idx.HeaderTip()
	require.NoError(t, err)
	require.Equal(t, eng.BestBlock().Key(), tipKey)
	require.Equal(t, headers[5], tipHeader)
}

func TestFilterIndex_ReorgKeepsStaleFiltersByHash(t *testing.T) {
	env := enginetest.New(t, false)
	main := testutil.NewChain(nil, 0, 4, 1, 0)
	env.Process(main...)

	idx, err := New("filters", env.Deps())
	require.NoError(t, err)
	env.Start(idx)

	alt := testutil.NewChain(main[1].Block, 0, 3, 1, 5)
	env.Process(alt...)
	env.Sync()

	prefix := expectedHeaders(main[:2], common.Hash{})
	altHeaders := expectedHeaders(alt, prefix[1])
	for i, b := range alt {
		f, err := idx.FilterByHeight(b.NumberU64())
		require.NoError(t, err)
		require.Equal(t, b.Hash(), f.BlockHash)
		require.Equal(t, altHeaders[i], f.Header)
	}

	// Filters of the abandoned branch are still found by hash.
	stale, err := idx.FilterByHash(main[3].Hash())
	require.NoError(t, err)
	require.Equal(t, uint64(3), stale.BlockNumber)

	active, err := idx.Lookup(context.Background(), alt[1].Hash().Hex())
	require.NoError(t, err)
	require.Equal(t, alt[1].Hash(), active.(*Filter).BlockHash)

	_, err = idx.FilterByHeight(5)
	require.ErrorIs(t, err, index.ErrNotFound)
}

func TestFilterIndex_Restart(t *testing.T) {
	env := enginetest.New(t, false)
	blocks := testutil.NewChain(nil, 0, 6, 1, 0)
	env.Process(blocks[:3]...)

	first, err := New("filters", env.Deps())
	require.NoError(t, err)
	eng := env.Start(first)
	eng.Interrupt()
	eng.Stop()

	env.Process(blocks[3:]...)

	second, err := New("filters", env.Deps())
	require.NoError(t, err)
	env.Start(second)

	headers := expectedHeaders(blocks, common.Hash{})
	f, err := second.FilterByHeight(5)
	require.NoError(t, err)
	require.Equal(t, headers[5], f.Header)
}

func TestFilterIndex_InitRejectsMismatchedFilter(t *testing.T) {
	env := enginetest.New(t, false)
	idx, err := New("filters", env.Deps())
	require.NoError(t, err)

	require.NoError(t, idx.CustomInit(nil))
	require.ErrorIs(t, idx.CustomInit(&chain.BlockKey{Height: 3}), index.ErrNotFound)

	b := testutil.NewChain(nil, 0, 1, 1, 0)[0]
	appendBlocks(t, idx, b)
	commit(t, env, idx)
	require.ErrorContains(t, idx.CustomInit(&chain.BlockKey{Height: 0, Hash: common.Hash{1}}), "belongs to")
}

func appendBlocks(t *testing.T, idx *FilterIndex, blocks ...testutil.Block) {
	t.Helper()
	for _, b := range blocks {
		require.NoError(t, idx.CustomAppend(chain.BlockInfo{
			Hash: b.Hash(), Height: b.NumberU64(), Data: b.Block, Undo: b.Receipts,
		}))
	}
}

func commit(t *testing.T, env *enginetest.Env, idx *FilterIndex) {
	t.Helper()
	batch := env.Store.NewBatch()
	require.NoError(t, idx.CustomCommit(batch))
	require.NoError(t, env.Store.Write(batch))
}

func stored(t *testing.T, env *enginetest.Env, key []byte) bool {
	t.Helper()
	ok, err := env.Store.Has(key)
	require.NoError(t, err)
	return ok
}

func TestFilterIndex_RecordsWrittenWithCheckpoint(t *testing.T) {
	env := enginetest.New(t, false)
	idx, err := New("filters", env.Deps())
	require.NoError(t, err)
	require.NoError(t, idx.CustomInit(nil))

	blocks := testutil.NewChain(nil, 0, 4, 1, 0)
	appendBlocks(t, idx, blocks[:3]...)

	// Appended filters are readable before they are written.
	f, err := idx.FilterByHeight(2)
	require.NoError(t, err)
	require.Equal(t, blocks[2].Hash(), f.BlockHash)
	require.False(t, stored(t, env, indexes.HeightKey(heightPrefix, 0)))
	require.Equal(t, 3, idx.Pending())

	commit(t, env, idx)
	for h := range uint64(3) {
		require.True(t, stored(t, env, indexes.HeightKey(heightPrefix, h)))
	}

	// A batch that never reaches the store is staged again.
	appendBlocks(t, idx, blocks[3])
	lost := env.Store.NewBatch()
	require.NoError(t, idx.CustomCommit(lost))
	require.Equal(t, 2, lost.Len(), "height 3 and the tip")

	retry := env.Store.NewBatch()
	require.NoError(t, idx.CustomCommit(retry))
	require.Equal(t, 2, retry.Len())
	require.NoError(t, env.Store.Write(retry))
	require.True(t, stored(t, env, indexes.HeightKey(heightPrefix, 3)))

	tipOnly := env.Store.NewBatch()
	require.NoError(t, idx.CustomCommit(tipOnly))
	require.Equal(t, 1, tipOnly.Len())
	require.Zero(t, idx.Pending())

	// A rewind only reaches the store with the next checkpoint.
	require.NoError(t, idx.CustomRewind(
		chain.BlockKey{Hash: blocks[3].Hash(), Height: 3},
		chain.BlockKey{Hash: blocks[2].Hash(), Height: 2},
	))
	_, err = idx.FilterByHeight(3)
	require.ErrorIs(t, err, index.ErrNotFound)
	require.True(t, stored(t, env, indexes.HeightKey(heightPrefix, 3)))

	rewound, err := idx.FilterByHash(blocks[3].Hash())
	require.NoError(t, err)
	require.Equal(t, uint64(3), rewound.BlockNumber)

	commit(t, env, idx)
	require.False(t, stored(t, env, indexes.HeightKey(heightPrefix, 3)))
	require.True(t, stored(t, env, indexes.HashKey(hashPrefix, blocks[3].Hash())))

	tip, header, err := idx.HeaderTip()
	require.NoError(t, err)
	require.Equal(t, blocks[2].Hash(), tip.Hash)
	require.Equal(t, expectedHeaders(blocks[:3], common.Hash{})[2], header)
}

func TestFilterIndex_InitDropsUncommittedRecords(t *testing.T) {
	env := enginetest.New(t, false)
	idx, err := New("filters", env.Deps())
	require.NoError(t, err)
	require.NoError(t, idx.CustomInit(nil))

	blocks := testutil.NewChain(nil, 0, 3, 1, 0)
	appendBlocks(t, idx, blocks[:2]...)
	commit(t, env, idx)
	appendBlocks(t, idx, blocks[2])

	require.NoError(t, idx.CustomInit(&chain.BlockKey{Hash: blocks[1].Hash(), Height: 1}))
	require.Zero(t, idx.Pending())
	_, err = idx.FilterByHeight(2)
	require.ErrorIs(t, err, index.ErrNotFound)
}

func TestFilterIndex_AppendNeedsReceipts(t *testing.T) {
	env := enginetest.New(t, false)
	idx, err := New("filters", env.Deps())
	require.NoError(t, err)

	b := testutil.NewChain(nil, 0, 1, 2, 0)[0]
	err = idx.CustomAppend(chain.BlockInfo{Hash: b.Hash(), Data: b.Block})
	require.ErrorContains(t, err, "2 transactions but 0 receipts")

	require.True(t, idx.AllowPrune())
	require.True(t, idx.CustomOptions().ConnectUndoData)
}

func TestFilterIndex_PrunedChain(t *testing.T) {
	env := enginetest.New(t, true)
	blocks := testutil.NewChain(nil, 0, 30, 1, 0)
	env.Process(blocks...)

	idx, err := New("filters", env.Deps())
	require.NoError(t, err)
	env.Start(idx)

	pruned, err := env.Manager.Prune(5)
	require.NoError(t, err)
	require.Positive(t, pruned)

	f, err := idx.FilterByHeight(0)
	require.NoError(t, err)
	require.Equal(t, blocks[0].Hash(), f.BlockHash)
}
