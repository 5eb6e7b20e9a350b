package engine

import (
	"slices"

	"github.com/google/go-cmp/cmp"
)

// Effect runs a synchronisation action only when its input changed.
//
// The first Run always executes. Later runs compare the current input
// against the stored snapshot with the supplied equality and execute only
// when they differ. Inputs are often rebuilt on every pass (fresh slices,
// fresh structs), so identity comparison would re-run the action every
// time; equality decides instead.
//
// The snapshot is stored after the action succeeds, including the first
// run. A failed action keeps the old snapshot so the next pass retries.
// Inputs that share memory with the caller (slices, maps) need a clone
// func, otherwise an in-place edit also edits the snapshot and is never
// seen as a change.
type Effect[T any] struct {
	equal func(a, b T) bool
	clone func(T) T
	prev  T
	has   bool
	runs  int
}

// NewEffect creates an effect using equal to compare inputs.
func NewEffect[T any](equal func(a, b T) bool) *Effect[T] {
	return &Effect[T]{equal: equal}
}

// WithClone sets the func used to copy an input before it is stored as
// the snapshot.
func (e *Effect[T]) WithClone(clone func(T) T) *Effect[T] {
	e.clone = clone
	return e
}

// Run executes action(current) unless current equals the snapshot.
// Returns whether the action ran successfully.
func (e *Effect[T]) Run(current T, action func(T) error) (bool, error) {
	if e.has && e.equal(e.prev, current) {
		return false, nil
	}
	if err := action(current); err != nil {
		return false, err
	}
	if e.clone != nil {
		current = e.clone(current)
	}
	e.prev = current
	e.has = true
	e.runs++
	return true, nil
}

// Reset forgets the snapshot. Used when the native object behind the
// effect is rebuilt and every property must be pushed again.
func (e *Effect[T]) Reset() {
	var zero T
	e.prev = zero
	e.has = false
}

// Runs returns how many times the action executed successfully.
func (e *Effect[T]) Runs() int {
	return e.runs
}

// Shallow compares comparable values with ==.
func Shallow[T comparable](a, b T) bool {
	return a == b
}

// SliceEqual compares slices element by element.
func SliceEqual[T comparable](a, b []T) bool {
	return slices.Equal(a, b)
}

// Deep compares arbitrary values structurally. Struct inputs must not
// carry unexported fields.
func Deep[T any](a, b T) bool {
	return cmp.Equal(a, b)
}
