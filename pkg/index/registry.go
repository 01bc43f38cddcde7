package index

import (
	"errors"
	"fmt"
	"sync"

	"github.com/goran-ethernal/IndexSync/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Registry holds the live engines of a process and starts and stops them together.
type Registry struct {
	log *logger.Logger

	mu      sync.RWMutex
	engines map[string]*Engine
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		log:     log,
		engines: make(map[string]*Engine),
	}
}

// Add registers e. Names must be unique.
func (r *Registry) Add(e *Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[e.Name()]; exists {
		return fmt.Errorf("index %q is already registered", e.Name())
	}
	r.engines[e.Name()] = e
	r.order = append(r.order, e.Name())
	return nil
}

// Get returns the engine named name.
func (r *Registry) Get(name string) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.engines[name]
	return e, ok
}

// List returns the engines in the order they were added.
func (r *Registry) List() []*Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Engine, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.engines[name])
	}
	return out
}

// Start initializes every engine and launches its background sync. Engines are
// initialized concurrently; if any fails, none is started and the errors are joined.
func (r *Registry) Start() error {
	engines := r.List()

	var g errgroup.Group
	errs := make([]error, len(engines))
	for i, e := range engines {
		g.Go(func() error {
			errs[i] = e.Init()
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		r.Stop()
		return err
	}

	for _, e := range engines {
		if err := e.StartBackgroundSync(); err != nil {
			return fmt.Errorf("failed to start %s: %w", e.Name(), err)
		}
	}

	r.log.Infof("started %d indexes", len(engines))
	return nil
}

// Interrupt asks every background sync to stop.
func (r *Registry) Interrupt() {
	for _, e := range r.List() {
		e.Interrupt()
	}
}

// Stop stops every engine and waits for them.
func (r *Registry) Stop() {
	var g errgroup.Group
	for _, e := range r.List() {
		g.Go(func() error {
			e.Stop()
			return nil
		})
	}
	_ = g.Wait()
}

// Summaries returns the status of every engine.
func (r *Registry) Summaries() []Summary {
	engines := r.List()
	out := make([]Summary, 0, len(engines))
	for _, e := range engines {
		out = append(out, e.Summary())
	}
	return out
}
