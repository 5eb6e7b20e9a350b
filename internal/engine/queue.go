package engine

import (
	"slices"
	"sync"
)

// Component is one unit of synchronisation work: a view or a
// representation. Sync runs the component's comparable effects against
// its current props. Components must be comparable (pointer types).
type Component interface {
	// Depth is the component's distance from the scene root. Parents sync
	// before their children within a pass.
	Depth() int
	// Sync reconciles native state with the declared props. Returning a
	// construction error asks for a retry on the next settle.
	Sync() error
}

// componentQueue is the set of components scheduled for the next pass.
//
// Scheduling is deduplicated: a component scheduled several times before
// the pass runs syncs once. Drain returns the batch ordered by depth and,
// within one depth, by scheduling order.
type componentQueue struct {
	mu     sync.Mutex
	items  []Component
	queued map[Component]bool
}

func newComponentQueue() *componentQueue {
	return &componentQueue{
		items:  make([]Component, 0, 16),
		queued: make(map[Component]bool),
	}
}

// Enqueue schedules c. Returns false if c was already scheduled.
func (q *componentQueue) Enqueue(c Component) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.queued[c] {
		return false
	}
	q.queued[c] = true
	q.items = append(q.items, c)
	return true
}

// Remove unschedules c. Used when a component unmounts with a sync still
// pending.
func (q *componentQueue) Remove(c Component) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.queued[c] {
		return
	}
	delete(q.queued, c)
	q.items = slices.DeleteFunc(q.items, func(x Component) bool { return x == c })
}

// Drain removes and returns every scheduled component, parents first.
// Components scheduled while the batch runs land in the next batch.
func (q *componentQueue) Drain() []Component {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := q.items
	q.items = make([]Component, 0, cap(batch))
	clear(q.queued)

	slices.SortStableFunc(batch, func(a, b Component) int {
		return a.Depth() - b.Depth()
	})
	return batch
}

// Len returns the number of scheduled components.
func (q *componentQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
