package engine

import (
	"errors"
	"log/slog"

	"github.com/roach88/scenesync/internal/gfx"
)

type pendingDeletion struct {
	handle gfx.Handle
	name   string
	del    func() error
}

// DeletionRegistry defers native deletions to an explicit flush.
//
// Handles are deleted in registration order. Combined with bottom-up
// teardown this deletes (or at least detaches) every referrer before its
// referents: an actor goes before the mapper and lookup table it uses.
//
// A handle is queued at most once. Registering a queued or already deleted
// handle is a no-op, and Cancel takes a handle back out of the queue when
// its owner is resurrected before the flush. A deletion the engine refuses
// stays queued until a later flush succeeds or it is cancelled.
//
// Each Root owns one registry.
type DeletionRegistry struct {
	queue   []pendingDeletion
	queued  map[gfx.Handle]bool
	deleted map[gfx.Handle]bool
	logger  *slog.Logger
	total   int
}

// NewDeletionRegistry creates an empty registry. A nil logger uses
// slog.Default().
func NewDeletionRegistry(logger *slog.Logger) *DeletionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeletionRegistry{
		queued:  make(map[gfx.Handle]bool),
		deleted: make(map[gfx.Handle]bool),
		logger:  logger,
	}
}

// Register queues del to delete h. Returns false when h is invalid,
// already queued or already deleted.
func (r *DeletionRegistry) Register(h gfx.Handle, name string, del func() error) bool {
	switch {
	case !h.Valid():
		return false
	case r.queued[h]:
		r.logger.Debug("deletion already queued", "handle", h, "node", name)
		return false
	case r.deleted[h]:
		r.logger.Debug("handle already deleted", "handle", h, "node", name)
		return false
	}
	r.queued[h] = true
	r.queue = append(r.queue, pendingDeletion{handle: h, name: name, del: del})
	return true
}

// Cancel removes h from the queue. Returns false if h was not queued.
func (r *DeletionRegistry) Cancel(h gfx.Handle) bool {
	if !r.queued[h] {
		return false
	}
	delete(r.queued, h)
	for i, p := range r.queue {
		if p.handle == h {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			break
		}
	}
	return true
}

// Pending reports whether h is queued.
func (r *DeletionRegistry) Pending(h gfx.Handle) bool {
	return r.queued[h]
}

// Deleted reports whether h was deleted by a flush.
func (r *DeletionRegistry) Deleted(h gfx.Handle) bool {
	return r.deleted[h]
}

// Len returns the number of queued deletions.
func (r *DeletionRegistry) Len() int {
	return len(r.queue)
}

// Total returns the number of deletions performed over the registry's
// lifetime.
func (r *DeletionRegistry) Total() int {
	return r.total
}

// Flush runs every queued deletion in FIFO order and returns how many
// succeeded. The queue is taken before the first callback runs, so
// registrations made by a callback land in the next flush. Every callback
// runs even if an earlier one fails. Refused deletions are retried in
// order while the flush still makes progress, since a later deletion may
// drop the reference that blocked them. Whatever is still refused stays
// queued ahead of new registrations and its errors are joined.
func (r *DeletionRegistry) Flush() (int, error) {
	if len(r.queue) == 0 {
		return 0, nil
	}
	batch := r.queue
	r.queue = nil

	var errs []error
	n := 0
	for {
		var refused []pendingDeletion
		errs = errs[:0]
		progress := 0
		for _, p := range batch {
			if r.deleted[p.handle] {
				r.logger.Debug("skipping double deletion", "handle", p.handle, "node", p.name)
				delete(r.queued, p.handle)
				continue
			}
			if err := p.del(); err != nil {
				refused = append(refused, p)
				errs = append(errs, NewDeleteError(p.name, err))
				continue
			}
			delete(r.queued, p.handle)
			r.deleted[p.handle] = true
			progress++
		}
		n += progress
		batch = refused
		if len(refused) == 0 || progress == 0 {
			break
		}
	}
	for _, p := range batch {
		r.logger.Warn("native delete refused, kept queued", "handle", p.handle, "node", p.name)
	}
	r.queue = append(batch, r.queue...)
	r.total += n
	return n, errors.Join(errs...)
}
