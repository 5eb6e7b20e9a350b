package scene

import (
	"slices"

	"github.com/roach88/scenesync/internal/gfx"
)

// Dataset identifies the data a source currently provides.
type Dataset struct {
	ID     string
	Bounds gfx.Bounds
}

type subscription[T any] struct {
	id int
	fn func(T)
}

// DataSource announces when its dataset becomes available or changes.
//
// Events are fire-and-forget: callbacks run synchronously in subscription
// order and return nothing. Subscribing does not replay the current state;
// read Available and Current instead. A callback may subscribe or
// unsubscribe during dispatch; the change applies from the next event.
type DataSource struct {
	name      string
	current   Dataset
	available bool
	nextID    int
	onAvail   []subscription[bool]
	onChange  []subscription[Dataset]
}

// NewDataSource creates an unavailable source.
func NewDataSource(name string) *DataSource {
	return &DataSource{name: name}
}

// Name returns the source name.
func (s *DataSource) Name() string { return s.name }

// Available reports whether a dataset is published.
func (s *DataSource) Available() bool { return s.available }

// Current returns the published dataset, if any.
func (s *DataSource) Current() (Dataset, bool) {
	return s.current, s.available
}

// Publish makes ds the current dataset. Change subscribers are notified
// first, then availability subscribers if the source was unavailable.
func (s *DataSource) Publish(ds Dataset) {
	wasAvailable := s.available
	s.current = ds
	s.available = true
	dispatch(s.onChange, ds)
	if !wasAvailable {
		dispatch(s.onAvail, true)
	}
}

// Withdraw drops the current dataset and notifies availability
// subscribers. Withdrawing an unavailable source is a no-op.
func (s *DataSource) Withdraw() {
	if !s.available {
		return
	}
	s.current = Dataset{}
	s.available = false
	dispatch(s.onAvail, false)
}

// OnDataAvailable subscribes to availability changes. The returned func
// unsubscribes; calling it twice is harmless.
func (s *DataSource) OnDataAvailable(fn func(available bool)) (unsubscribe func()) {
	s.nextID++
	id := s.nextID
	s.onAvail = append(s.onAvail, subscription[bool]{id: id, fn: fn})
	return func() {
		s.onAvail = slices.DeleteFunc(s.onAvail, func(x subscription[bool]) bool { return x.id == id })
	}
}

// OnDataChanged subscribes to dataset changes.
func (s *DataSource) OnDataChanged(fn func(Dataset)) (unsubscribe func()) {
	s.nextID++
	id := s.nextID
	s.onChange = append(s.onChange, subscription[Dataset]{id: id, fn: fn})
	return func() {
		s.onChange = slices.DeleteFunc(s.onChange, func(x subscription[Dataset]) bool { return x.id == id })
	}
}

// Subscribers returns the number of live subscriptions.
func (s *DataSource) Subscribers() int {
	return len(s.onAvail) + len(s.onChange)
}

func dispatch[T any](subs []subscription[T], v T) {
	for _, sub := range slices.Clone(subs) {
		sub.fn(v)
	}
}
