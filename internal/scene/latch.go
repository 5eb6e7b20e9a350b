package scene

// visibilityLatch keeps an actor hidden until its data has been reported
// available.
//
// Before the first Register(true) the effective visibility is false
// whatever the declared setting. After that it follows the declared
// setting while the latest report is true; a later Register(false) hides
// the actor again.
type visibilityLatch struct {
	opened    bool
	available bool
}

// Register records an availability report.
func (l *visibilityLatch) Register(available bool) {
	if available {
		l.opened = true
	}
	l.available = available
}

// Effective returns the visibility to push to the engine.
func (l *visibilityLatch) Effective(declared bool) bool {
	return l.available && declared
}

// Opened reports whether data was ever reported available.
func (l *visibilityLatch) Opened() bool {
	return l.opened
}
