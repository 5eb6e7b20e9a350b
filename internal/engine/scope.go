package engine

import (
	"errors"
	"fmt"
	"slices"
)

// ScopeState is the teardown state of a Scope.
type ScopeState int

const (
	// ScopeActive is a mounted scope.
	ScopeActive ScopeState = iota
	// ScopeTearingDownChildren has received its removal signal and waits
	// for every child to be destroyed.
	ScopeTearingDownChildren
	// ScopeTearingDownSelf is running its own teardown.
	ScopeTearingDownSelf
	// ScopeDestroyed is terminal.
	ScopeDestroyed
)

func (s ScopeState) String() string {
	switch s {
	case ScopeActive:
		return "Active"
	case ScopeTearingDownChildren:
		return "TearingDownChildren"
	case ScopeTearingDownSelf:
		return "TearingDownSelf"
	case ScopeDestroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("ScopeState(%d)", int(s))
	}
}

// ScopeObserver is told about every state transition in a scope tree.
type ScopeObserver func(s *Scope, from, to ScopeState)

// Scope mirrors one mounted component for ordered teardown.
//
// Each scope has an ordered list of child scopes and one own teardown.
// Its own teardown never runs before every child scope is destroyed, no
// matter in which order the removal signals arrive:
//
//	Active -> TearingDownChildren   removal signal, children alive
//	Active -> TearingDownSelf       removal signal, no children
//	TearingDownChildren -> TearingDownSelf   last child destroyed
//	TearingDownSelf -> Destroyed    own teardown returned
//
// A removal signal on a scope that is not Active is ignored. Scope is not
// safe for concurrent use.
type Scope struct {
	name     string
	parent   *Scope
	children []*Scope
	teardown func() error
	state    ScopeState
	observer ScopeObserver
}

// NewScope creates a root scope.
func NewScope(name string) *Scope {
	return &Scope{name: name}
}

// SetObserver installs fn on this scope and every scope created under it
// afterwards.
func (s *Scope) SetObserver(fn ScopeObserver) {
	s.observer = fn
}

// Child creates a child scope. Children are created only under an Active
// scope.
func (s *Scope) Child(name string) (*Scope, error) {
	if s.state != ScopeActive {
		return nil, &RuntimeError{
			Code:    ErrCodeScopeInactive,
			Message: fmt.Sprintf("scope is %s", s.state),
			Node:    s.Path(),
		}
	}
	c := &Scope{name: name, parent: s, observer: s.observer}
	s.children = append(s.children, c)
	return c, nil
}

// OnTeardown sets the scope's own teardown, replacing any previous one.
func (s *Scope) OnTeardown(fn func() error) {
	s.teardown = fn
}

// Name returns the scope's name.
func (s *Scope) Name() string {
	return s.name
}

// Path returns the slash-separated names from the root scope.
func (s *Scope) Path() string {
	if s.parent == nil {
		return s.name
	}
	return s.parent.Path() + "/" + s.name
}

// State returns the current state.
func (s *Scope) State() ScopeState {
	return s.state
}

// Parent returns the parent scope, nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Children returns the children not yet destroyed, in creation order.
func (s *Scope) Children() []*Scope {
	return slices.Clone(s.children)
}

// Depth returns the distance from the root scope.
func (s *Scope) Depth() int {
	d := 0
	for p := s.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

func (s *Scope) transition(to ScopeState) {
	from := s.state
	s.state = to
	if s.observer != nil {
		s.observer(s, from, to)
	}
}

// Remove delivers the removal signal. A scope without live children tears
// itself down at once and may in turn complete a waiting parent. The
// returned error joins every teardown failure that ran as a result; a
// failing teardown still destroys its scope.
func (s *Scope) Remove() error {
	if s.state != ScopeActive {
		return nil
	}
	if len(s.children) > 0 {
		s.transition(ScopeTearingDownChildren)
		return nil
	}
	return s.destroy()
}

// destroy runs the own teardown and propagates completion upward.
func (s *Scope) destroy() error {
	s.transition(ScopeTearingDownSelf)
	var err error
	if s.teardown != nil {
		if terr := s.teardown(); terr != nil {
			err = fmt.Errorf("teardown %s: %w", s.Path(), terr)
		}
	}
	s.transition(ScopeDestroyed)

	p := s.parent
	if p == nil {
		return err
	}
	p.children = slices.DeleteFunc(p.children, func(c *Scope) bool { return c == s })
	if p.state == ScopeTearingDownChildren && len(p.children) == 0 {
		return errors.Join(err, p.destroy())
	}
	return err
}

// Revive returns a scope waiting on its children to Active, for a
// component that mounts again before its teardown completed. Children
// already destroyed stay destroyed. Returns false unless the scope was in
// TearingDownChildren.
func (s *Scope) Revive() bool {
	if s.state != ScopeTearingDownChildren {
		return false
	}
	s.transition(ScopeActive)
	return true
}

// Finish ends a teardown pass. Every scope in the subtree still waiting in
// TearingDownChildren force-removes its remaining children, youngest
// first, so the pass completes even when some children never received
// their own removal signal.
func (s *Scope) Finish() error {
	switch s.state {
	case ScopeDestroyed, ScopeTearingDownSelf:
		return nil
	case ScopeTearingDownChildren:
		return s.force()
	}
	var errs []error
	for _, c := range slices.Clone(s.children) {
		errs = append(errs, c.Finish())
	}
	return errors.Join(errs...)
}

// force tears down the subtree youngest child first.
func (s *Scope) force() error {
	if s.state == ScopeActive {
		if len(s.children) == 0 {
			return s.destroy()
		}
		s.transition(ScopeTearingDownChildren)
	}
	var errs []error
	for i := len(s.children) - 1; i >= 0 && s.state == ScopeTearingDownChildren; i-- {
		if i >= len(s.children) {
			continue
		}
		errs = append(errs, s.children[i].force())
	}
	return errors.Join(errs...)
}
