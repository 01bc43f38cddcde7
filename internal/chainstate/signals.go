package chainstate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/pkg/chain"
	"github.com/lightningnetwork/lnd/queue"
)

// ErrQueueStopped is returned when waiting on a queue that no longer runs callbacks.
var ErrQueueStopped = errors.New("notification queue stopped")

// queueBufferSize is the number of callbacks handed to the consumer ahead of time.
// Anything beyond it waits in the queue's overflow list.
const queueBufferSize = 64

type subscriber struct {
	notifications chain.Notifications
	options       chain.NotifyOptions
}

// stopMarker ends delivery once every callback queued before it has run.
type stopMarker struct{}

// Signals delivers chain events to subscribers from a single goroutine, in the order
// they were queued. The queue is unbounded so producers never block while holding the
// chain lock.
type Signals struct {
	log *logger.Logger

	queue *queue.ConcurrentQueue
	depth atomic.Int64

	mu      sync.Mutex
	subs    map[uint64]subscriber
	nextID  uint64
	running bool
	stopped bool
	done    chan struct{}
}

// NewSignals creates a queue that accepts callbacks right away. Call Start to
// begin delivery.
func NewSignals(log *logger.Logger) *Signals {
	s := &Signals{
		log:   log,
		queue: queue.NewConcurrentQueue(queueBufferSize),
		subs:  make(map[uint64]subscriber),
		done:  make(chan struct{}),
	}
	s.queue.Start()
	return s
}

// Start launches the delivery goroutine.
func (s *Signals) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.stopped {
		return
	}
	s.running = true
	go s.run()
}

// Stop runs the callbacks already queued, then stops the delivery goroutine.
func (s *Signals) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	running := s.running
	if running {
		s.queue.ChanIn() <- stopMarker{}
	}
	s.mu.Unlock()

	if running {
		<-s.done
	}
	s.queue.Stop()
}

func (s *Signals) run() {
	defer close(s.done)

	for item := range s.queue.ChanOut() {
		fn, ok := item.(func())
		if !ok {
			return
		}
		queueDepthSet(s.depth.Add(-1))
		fn()
	}
}

// CallFunctionInQueue schedules fn after every event queued so far.
func (s *Signals) CallFunctionInQueue(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.log.Warn("dropping callback queued after stop")
		return
	}
	queueDepthSet(s.depth.Add(1))
	s.queue.ChanIn() <- fn
}

// SyncWithQueue blocks until every callback queued before the call has run. It must
// not be called from a notification callback.
func (s *Signals) SyncWithQueue(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrQueueStopped
	}
	s.mu.Unlock()

	drained := make(chan struct{})
	s.CallFunctionInQueue(func() { close(drained) })

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		// Stop runs every queued callback before closing done.
		select {
		case <-drained:
			return nil
		default:
			return ErrQueueStopped
		}
	}
}

// Register adds a subscriber and returns the handler that removes it.
func (s *Signals) Register(n chain.Notifications, opts chain.NotifyOptions) chain.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = subscriber{notifications: n, options: opts}
	s.log.Debugf("registered subscriber %q", opts.Name)

	return &handler{signals: s, id: id}
}

func (s *Signals) unregister(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subs[id]; ok {
		delete(s.subs, id)
		s.log.Debugf("unregistered subscriber %q", sub.options.Name)
	}
}

// subscribers returns a snapshot taken when a callback runs, so a subscriber
// registered after an event was queued still receives it.
func (s *Signals) subscribers() []subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out
}

// BlockConnected queues a connect event. Receipts are only passed to subscribers that
// asked for undo data.
func (s *Signals) BlockConnected(role chain.Role, info chain.BlockInfo) {
	s.CallFunctionInQueue(func() {
		for _, sub := range s.subscribers() {
			delivered := info
			if !sub.options.ConnectUndoData {
				delivered.Undo = nil
			}
			sub.notifications.BlockConnected(role, delivered)
		}
	})
}

// BlockDisconnected queues a disconnect event.
func (s *Signals) BlockDisconnected(info chain.BlockInfo) {
	s.CallFunctionInQueue(func() {
		for _, sub := range s.subscribers() {
			sub.notifications.BlockDisconnected(info)
		}
	})
}

// ChainStateFlushed queues a flush event.
func (s *Signals) ChainStateFlushed(role chain.Role, locator chain.Locator) {
	s.CallFunctionInQueue(func() {
		for _, sub := range s.subscribers() {
			sub.notifications.ChainStateFlushed(role, locator)
		}
	})
}

type handler struct {
	signals *Signals
	once    sync.Once
	id      uint64
}

func (h *handler) Close() {
	h.once.Do(func() { h.signals.unregister(h.id) })
}
