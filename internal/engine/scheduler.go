package engine

import "fmt"

// RenderTarget is the view a RenderScheduler drives.
type RenderTarget interface {
	// Ready reports whether the render window exists and is attached.
	Ready() bool
	// CanRecenter reports whether the active interactor style supports a
	// center of rotation. Checked once per settle.
	CanRecenter() bool
	// ResetCamera fits the camera to the visible geometry.
	ResetCamera() error
	// RecenterRotation moves the center of rotation to the focal point.
	RecenterRotation() error
	// Render issues exactly one native render.
	Render() error
}

// RenderScheduler coalesces render requests for one view.
//
// Request only sets a pending flag. Settle, run once per update cycle
// after every synchronisation pass, turns any number of requests into at
// most one native render, optionally preceded by a camera reset and a
// rotation recentre. A request raised while Render is running is deferred
// to the next cycle instead of recursing.
type RenderScheduler struct {
	target     RenderTarget
	autoReset  bool
	autoCenter bool
	pending    bool
	deferred   bool
	rendering  bool
	renders    int
}

// SchedulerOption configures a RenderScheduler.
type SchedulerOption func(*RenderScheduler)

// WithAutoResetCamera toggles the camera reset before each render.
// Default: on.
func WithAutoResetCamera(on bool) SchedulerOption {
	return func(s *RenderScheduler) { s.autoReset = on }
}

// WithAutoCenterOfRotation toggles recentring rotation after a camera
// reset. Default: on.
func WithAutoCenterOfRotation(on bool) SchedulerOption {
	return func(s *RenderScheduler) { s.autoCenter = on }
}

// NewRenderScheduler creates a scheduler for target.
func NewRenderScheduler(target RenderTarget, opts ...SchedulerOption) *RenderScheduler {
	s := &RenderScheduler{
		target:     target,
		autoReset:  true,
		autoCenter: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetAutoResetCamera changes the camera reset toggle.
func (s *RenderScheduler) SetAutoResetCamera(on bool) { s.autoReset = on }

// SetAutoCenterOfRotation changes the recentre toggle.
func (s *RenderScheduler) SetAutoCenterOfRotation(on bool) { s.autoCenter = on }

// Request asks for a render in the next settle.
func (s *RenderScheduler) Request() {
	if s.rendering {
		s.deferred = true
		return
	}
	s.pending = true
}

// Pending reports whether a render is waiting.
func (s *RenderScheduler) Pending() bool {
	return s.pending
}

// Renders returns the number of native renders issued.
func (s *RenderScheduler) Renders() int {
	return s.renders
}

// Settle performs the pending render, if any. It is a no-op while no
// render is pending, while a render is already running, and while the
// target is not ready; in the last case the request stays pending so the
// view renders once its window is attached. A failed render also stays
// pending.
func (s *RenderScheduler) Settle() (rendered bool, err error) {
	if !s.pending || s.rendering {
		return false, nil
	}
	if !s.target.Ready() {
		return false, nil
	}

	s.rendering = true
	defer func() {
		s.rendering = false
		s.pending = s.deferred || err != nil
		s.deferred = false
	}()

	if s.autoReset {
		if err := s.target.ResetCamera(); err != nil {
			return false, fmt.Errorf("reset camera: %w", err)
		}
		if s.autoCenter && s.target.CanRecenter() {
			if err := s.target.RecenterRotation(); err != nil {
				return false, fmt.Errorf("recenter rotation: %w", err)
			}
		}
	}
	if err := s.target.Render(); err != nil {
		return false, fmt.Errorf("render: %w", err)
	}
	s.renders++
	return true, nil
}
