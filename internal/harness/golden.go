package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/scenesync/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// It is serialized with canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	RootID       string
	Trace        ir.List
	Cycles       ir.List
}

// Snapshot builds the snapshot of result under name.
func Snapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		RootID:       result.RootID,
		Trace:        result.Trace(),
		Cycles:       result.CycleTrace(),
	}
}

// MarshalCanonical serializes the snapshot as canonical JSON.
func (s TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(ir.Map{
		"scenario_name": ir.String(s.ScenarioName),
		"root_id":       ir.String(s.RootID),
		"trace":         s.Trace,
		"cycles":        s.Cycles,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden unless
// opts override the fixture directory.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := Snapshot(name, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, name, data)

	return nil
}
