package engine

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/roach88/scenesync/internal/gfx"
)

// Root is the runtime context of one scene root.
//
// Everything that would otherwise be process-wide state lives here: the
// deletion registry, the render schedulers of every view, the arena of
// native nodes and the root unmount scope. Components receive the Root at
// creation, so independent scenes never interfere.
//
// Root is single-threaded: every method must be called from the goroutine
// driving the host's update cycles.
type Root struct {
	id        string
	gfx       gfx.Engine
	logger    *slog.Logger
	clock     SeqSource
	arena     *Arena
	deletions *DeletionRegistry
	scope     *Scope
	queue     *componentQueue
	budget    *PassBudget
	maxPasses int
	views     []*trackedView
	failures  map[Component]int
	idGen     IDGenerator
	closed    bool
}

type trackedView struct {
	name  string
	sched *RenderScheduler
	dirty *DirtyAccumulator
}

// CycleReport summarises one Settle.
type CycleReport struct {
	// Seq is the cycle's logical timestamp.
	Seq int64 `json:"seq"`
	// Passes is the number of synchronisation passes run.
	Passes int `json:"passes"`
	// Synced is the number of component syncs across all passes.
	Synced int `json:"synced"`
	// Renders is the number of native renders issued.
	Renders int `json:"renders"`
	// Deletions is the number of native objects deleted.
	Deletions int `json:"deletions"`
}

// Option configures a Root.
type Option func(*Root)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Root) { r.logger = l }
}

// WithMaxPasses sets the pass budget per settle.
//
// Default: 100 (DefaultMaxPasses)
func WithMaxPasses(n int) Option {
	return func(r *Root) { r.maxPasses = n }
}

// WithIDGenerator sets the root ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Root) { r.idGen = g }
}

// WithClock sets the logical clock. Pass the same clock to the graphics
// engine's recorder to order cycles and native calls on one axis.
func WithClock(c SeqSource) Option {
	return func(r *Root) { r.clock = c }
}

// New creates a scene root driving g.
func New(g gfx.Engine, opts ...Option) *Root {
	r := &Root{
		gfx:       g,
		logger:    slog.Default(),
		maxPasses: DefaultMaxPasses,
		idGen:     UUIDv7Generator{},
		queue:     newComponentQueue(),
		failures:  make(map[Component]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = NewClock()
	}
	r.id = r.idGen.Generate()
	r.logger = r.logger.With("root", r.id)
	r.budget = NewPassBudget(r.maxPasses)
	r.deletions = NewDeletionRegistry(r.logger)
	r.arena = NewArena(g, r.deletions, r.logger)
	r.scope = NewScope(r.id)
	r.scope.SetObserver(func(s *Scope, from, to ScopeState) {
		r.logger.Debug("scope transition", "scope", s.Path(), "from", from.String(), "to", to.String())
	})
	return r
}

// ID returns the root's identifier.
func (r *Root) ID() string { return r.id }

// Engine returns the graphics engine.
func (r *Root) Engine() gfx.Engine { return r.gfx }

// Logger returns the root's logger.
func (r *Root) Logger() *slog.Logger { return r.logger }

// Clock returns the logical clock.
func (r *Root) Clock() SeqSource { return r.clock }

// Arena returns the node arena.
func (r *Root) Arena() *Arena { return r.arena }

// Deletions returns the deletion registry.
func (r *Root) Deletions() *DeletionRegistry { return r.deletions }

// Scope returns the root unmount scope. Views create their scopes under it.
func (r *Root) Scope() *Scope { return r.scope }

// Closed reports whether Close has run.
func (r *Root) Closed() bool { return r.closed }

// Schedule queues c for the next synchronisation pass. Scheduling the
// same component twice before it syncs is a no-op.
func (r *Root) Schedule(c Component) {
	if r.closed {
		return
	}
	r.queue.Enqueue(c)
}

// Unschedule drops a pending sync for c.
func (r *Root) Unschedule(c Component) {
	r.queue.Remove(c)
	delete(r.failures, c)
}

// Scheduled returns the number of components waiting for a pass.
func (r *Root) Scheduled() int {
	return r.queue.Len()
}

// Track registers a view's render scheduler and dirty accumulator with the
// settle step. The returned func untracks them.
func (r *Root) Track(name string, s *RenderScheduler, d *DirtyAccumulator) func() {
	tv := &trackedView{name: name, sched: s, dirty: d}
	r.views = append(r.views, tv)
	return func() {
		r.views = slices.DeleteFunc(r.views, func(x *trackedView) bool { return x == tv })
	}
}

// Settle runs the settle step of one update cycle:
//
//  1. synchronisation passes until no component is scheduled, parents
//     before children, bounded by the pass budget
//  2. the end of the teardown pass (Scope.Finish)
//  3. the deletion flush
//  4. for every tracked view: consume the dirty flag into a render
//     request, then settle its render scheduler
//
// A component whose sync fails to construct a native object is retried
// on the next Settle, and is skipped by the remaining passes of this one
// even when something schedules it again. The first failure is only
// logged; a second consecutive failure is returned.
func (r *Root) Settle() (CycleReport, error) {
	if r.closed {
		return CycleReport{}, &RuntimeError{Code: ErrCodeRootClosed, Message: "settle after close", Root: r.id}
	}
	report := CycleReport{Seq: r.clock.Next()}
	r.budget.Reset()

	var errs []error
	var retry []Component
	deferred := make(map[Component]bool)
	for r.queue.Len() > 0 {
		if err := r.budget.Check(r.id); err != nil {
			r.logger.Error("pass budget exceeded", "passes", r.budget.Current(), "limit", r.budget.MaxPasses())
			errs = append(errs, err)
			break
		}
		report.Passes++
		for _, c := range r.queue.Drain() {
			if deferred[c] {
				continue
			}
			report.Synced++
			err := c.Sync()
			switch {
			case err == nil:
				delete(r.failures, c)
			case IsConstructionError(err):
				r.failures[c]++
				deferred[c] = true
				retry = append(retry, c)
				if r.failures[c] > 1 {
					r.logger.Error("construction failed again", "failures", r.failures[c], "error", err)
					errs = append(errs, err)
				} else {
					r.logger.Warn("construction failed, retrying next cycle", "error", err)
				}
			default:
				errs = append(errs, err)
			}
		}
	}
	for _, c := range retry {
		r.queue.Enqueue(c)
	}

	if err := r.scope.Finish(); err != nil {
		errs = append(errs, err)
	}
	n, err := r.deletions.Flush()
	report.Deletions = n
	if err != nil {
		errs = append(errs, err)
	}

	for _, v := range slices.Clone(r.views) {
		if v.dirty.Consume() {
			v.sched.Request()
		}
		rendered, err := v.sched.Settle()
		if err != nil {
			r.logger.Error("render failed", "view", v.name, "error", err)
			errs = append(errs, err)
		}
		if rendered {
			report.Renders++
		}
	}

	r.logger.Debug("cycle settled",
		"seq", report.Seq,
		"passes", report.Passes,
		"synced", report.Synced,
		"renders", report.Renders,
		"deletions", report.Deletions,
	)
	return report, errors.Join(errs...)
}

// Close tears the whole scene down: every scope is removed children
// first, and every released node is deleted. The root is unusable
// afterwards. Closing twice is a no-op.
func (r *Root) Close() error {
	if r.closed {
		return nil
	}
	var errs []error
	if err := r.scope.Remove(); err != nil {
		errs = append(errs, err)
	}
	if err := r.scope.Finish(); err != nil {
		errs = append(errs, err)
	}
	n, err := r.deletions.Flush()
	if err != nil {
		errs = append(errs, err)
	}
	r.closed = true
	r.queue.Drain()
	r.views = nil
	r.logger.Info("root closed", "deletions", n, "live_nodes", r.arena.Len())
	return errors.Join(errs...)
}
