package chainstate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/chain"
	"github.com/stretchr/testify/require"
)

func TestSignals_Order(t *testing.T) {
	s := NewSignals(logger.NewNopLogger())
	s.Start()
	defer s.Stop()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 100 {
		s.CallFunctionInQueue(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	require.NoError(t, s.SyncWithQueue(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestSignals_SubscribersResolvedAtDelivery(t *testing.T) {
	s := NewSignals(logger.NewNopLogger())

	// Queued before the subscriber exists and before the worker runs.
	s.ChainStateFlushed(chain.RoleNormal, chain.Locator{})

	rec := &recorder{}
	h := s.Register(rec, chain.NotifyOptions{Name: "late"})
	s.Start()
	defer s.Stop()

	require.NoError(t, s.SyncWithQueue(context.Background()))
	require.Len(t, rec.snapshot(), 1)

	h.Close()
	h.Close()
	s.BlockDisconnected(chain.BlockInfo{Height: 1})
	require.NoError(t, s.SyncWithQueue(context.Background()))
	require.Len(t, rec.snapshot(), 1, "closed handler receives nothing")
}

func TestSignals_UndoOnlyWhenRequested(t *testing.T) {
	s := NewSignals(logger.NewNopLogger())
	s.Start()
	defer s.Stop()

	plain := &recorder{}
	withUndo := &recorder{}
	s.Register(plain, chain.NotifyOptions{Name: "plain"})
	s.Register(withUndo, chain.NotifyOptions{Name: "undo", ConnectUndoData: true})

	s.BlockConnected(chain.RoleNormal, chain.BlockInfo{Height: 3, Undo: make([]*types.Receipt, 2)})
	require.NoError(t, s.SyncWithQueue(context.Background()))

	require.Nil(t, plain.infos[0].Undo)
	require.Len(t, withUndo.infos[0].Undo, 2)
}

func TestSignals_SyncWithQueue(t *testing.T) {
	s := NewSignals(logger.NewNopLogger())
	s.Start()

	release := make(chan struct{})
	s.CallFunctionInQueue(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.SyncWithQueue(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, s.SyncWithQueue(context.Background()))

	s.Stop()
	require.ErrorIs(t, s.SyncWithQueue(context.Background()), ErrQueueStopped)
}

func TestSignals_StopDrainsQueue(t *testing.T) {
	s := NewSignals(logger.NewNopLogger())
	s.Start()

	var ran bool
	s.CallFunctionInQueue(func() {
		time.Sleep(10 * time.Millisecond)
		ran = true
	})
	s.Stop()
	require.True(t, ran)
}
