package harness

import (
	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step behaved as declared and all assertions held.
	Pass bool `json:"pass"`

	// RootID is the root the scenario ran under.
	RootID string `json:"root_id"`

	// Calls contains every native call in seq order, failed ones included.
	Calls []gfx.Call `json:"calls"`

	// Cycles contains one report per settle step.
	Cycles []engine.CycleReport `json:"cycles"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(rootID string) *Result {
	return &Result{
		Pass:   true,
		RootID: rootID,
		Calls:  []gfx.Call{},
		Cycles: []engine.CycleReport{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Trace returns the calls as a canonical-ready list.
func (r *Result) Trace() ir.List {
	out := make(ir.List, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.IR()
	}
	return out
}

// CycleTrace returns the cycle reports as a canonical-ready list.
func (r *Result) CycleTrace() ir.List {
	out := make(ir.List, len(r.Cycles))
	for i, c := range r.Cycles {
		out[i] = ir.Map{
			"seq":       ir.Int(c.Seq),
			"passes":    ir.Int(c.Passes),
			"synced":    ir.Int(c.Synced),
			"renders":   ir.Int(c.Renders),
			"deletions": ir.Int(c.Deletions),
		}
	}
	return out
}
