package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/scenesync/internal/gfx"
)

// NodeID indexes a node in an Arena. The zero NodeID is never valid.
type NodeID uint32

// NoNode is the invalid NodeID.
const NoNode NodeID = 0

type node struct {
	id        NodeID
	kind      gfx.Kind
	name      string
	parent    NodeID
	cache     *Cache[gfx.Handle]
	referents []NodeID
	released  bool
	retired   bool
}

// Arena holds every native object of one scene root as an indexed node.
//
// Ownership and references are stored as NodeIDs, never as pointers: a
// node belongs to the component that added it, and other nodes refer to
// it by index (an actor refers to its mapper). A node's handle is built
// lazily through its Cache and deleted through the root's
// DeletionRegistry.
//
// Lifecycle of a node:
//
//	Add -> Handle (constructs) -> Release (queues deletion) -> flush (retired)
//
// Calling Handle between Release and the flush resurrects the node: the
// pending deletion is cancelled and the same native object stays in use.
type Arena struct {
	nodes     []*node
	deletions *DeletionRegistry
	engine    gfx.Engine
	logger    *slog.Logger
}

// NewArena creates an empty arena deleting through deletions.
func NewArena(g gfx.Engine, deletions *DeletionRegistry, logger *slog.Logger) *Arena {
	if logger == nil {
		logger = slog.Default()
	}
	return &Arena{deletions: deletions, engine: g, logger: logger}
}

// Add registers a node. The factory runs on the first Handle call.
func (a *Arena) Add(kind gfx.Kind, name string, parent NodeID, factory func() (gfx.Handle, error)) NodeID {
	id := NodeID(len(a.nodes) + 1)
	a.nodes = append(a.nodes, &node{
		id:     id,
		kind:   kind,
		name:   name,
		parent: parent,
		cache:  NewCache(name, factory),
	})
	return id
}

func (a *Arena) get(id NodeID) *node {
	if id == NoNode || int(id) > len(a.nodes) {
		return nil
	}
	return a.nodes[id-1]
}

// Handle returns the node's native handle, constructing it on first use.
// Construction failures are returned and retried on the next call. A
// released node whose deletion has not run yet is resurrected.
func (a *Arena) Handle(id NodeID) (gfx.Handle, error) {
	n := a.get(id)
	if n == nil {
		return gfx.NoHandle, fmt.Errorf("unknown node %d", id)
	}
	if n.retired {
		return gfx.NoHandle, &RuntimeError{
			Code:    ErrCodeNodeRetired,
			Message: "node was deleted",
			Node:    n.name,
		}
	}
	h, err := n.cache.Get()
	if err != nil {
		return gfx.NoHandle, err
	}
	if n.released {
		n.released = false
		if a.deletions.Cancel(h) {
			a.logger.Debug("node resurrected", "node", n.name, "handle", h)
		}
	}
	return h, nil
}

// Peek returns the handle if it was constructed, without constructing it
// or resurrecting the node.
func (a *Arena) Peek(id NodeID) (gfx.Handle, bool) {
	n := a.get(id)
	if n == nil || n.retired {
		return gfx.NoHandle, false
	}
	return n.cache.Peek()
}

// Reference records that from refers to to.
func (a *Arena) Reference(from, to NodeID) {
	n := a.get(from)
	if n == nil || a.get(to) == nil || slices.Contains(n.referents, to) {
		return
	}
	n.referents = append(n.referents, to)
}

// Unreference removes a link added by Reference.
func (a *Arena) Unreference(from, to NodeID) {
	if n := a.get(from); n != nil {
		n.referents = slices.DeleteFunc(n.referents, func(x NodeID) bool { return x == to })
	}
}

// Referents returns the nodes id refers to.
func (a *Arena) Referents(id NodeID) []NodeID {
	if n := a.get(id); n != nil {
		return slices.Clone(n.referents)
	}
	return nil
}

// Referrers returns the live nodes that refer to id.
func (a *Arena) Referrers(id NodeID) []NodeID {
	var out []NodeID
	for _, n := range a.nodes {
		if !n.retired && slices.Contains(n.referents, id) {
			out = append(out, n.id)
		}
	}
	return out
}

// Children returns the live nodes added with id as parent.
func (a *Arena) Children(id NodeID) []NodeID {
	var out []NodeID
	for _, n := range a.nodes {
		if !n.retired && n.parent == id {
			out = append(out, n.id)
		}
	}
	return out
}

// Release queues the node's deletion. A node that was never constructed
// retires at once. Returns false for unknown, retired or already released
// nodes. If the engine refuses the deletion the node stays live and
// released, and the deletion is retried by every later flush.
func (a *Arena) Release(id NodeID) bool {
	n := a.get(id)
	if n == nil || n.retired || n.released {
		return false
	}
	h, built := n.cache.Peek()
	if !built {
		a.retire(n)
		return true
	}
	n.released = true
	a.deletions.Register(h, n.name, func() error {
		if refs := a.Referrers(n.id); len(refs) > 0 {
			a.logger.Warn("deleting node with live referrers", "node", n.name, "referrers", a.names(refs))
		}
		if err := a.engine.Delete(h); err != nil {
			return err
		}
		a.retire(n)
		return nil
	})
	return true
}

func (a *Arena) retire(n *node) {
	n.retired = true
	n.released = false
	n.referents = nil
	n.cache.Reset()
	for _, other := range a.nodes {
		other.referents = slices.DeleteFunc(other.referents, func(x NodeID) bool { return x == n.id })
	}
}

func (a *Arena) names(ids []NodeID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n := a.get(id); n != nil {
			out = append(out, n.name)
		}
	}
	return out
}

// Live reports whether the node exists and has not been retired.
func (a *Arena) Live(id NodeID) bool {
	n := a.get(id)
	return n != nil && !n.retired
}

// Released reports whether the node's deletion is queued.
func (a *Arena) Released(id NodeID) bool {
	n := a.get(id)
	return n != nil && n.released
}

// Kind returns the node's kind.
func (a *Arena) Kind(id NodeID) gfx.Kind {
	if n := a.get(id); n != nil {
		return n.kind
	}
	return ""
}

// Name returns the node's name.
func (a *Arena) Name(id NodeID) string {
	if n := a.get(id); n != nil {
		return n.name
	}
	return ""
}

// Failures returns the node's consecutive construction failures.
func (a *Arena) Failures(id NodeID) int {
	if n := a.get(id); n != nil {
		return n.cache.ConsecutiveFailures()
	}
	return 0
}

// Len returns the number of live nodes.
func (a *Arena) Len() int {
	c := 0
	for _, n := range a.nodes {
		if !n.retired {
			c++
		}
	}
	return c
}
