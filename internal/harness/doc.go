// Package harness provides conformance testing for scene synchronisation.
//
// The harness compiles a CUE scene, mounts it on a recording engine,
// drives it through scripted steps and validates the native call trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	scene: scenes/ct        # CUE package directory
//	steps:
//	  - do: settle
//	  - do: publish
//	    source: ct
//	    dataset: ct-002
//	    bounds: [0, 10, 0, 10, 0, 10]
//	  - do: settle
//	assertions:
//	  - type: render_count
//	    view: axial
//	    count: 2
//	  - type: call_order
//	    calls: ["delete:actor", "delete:renderer"]
//
// # Step Types
//
//   - settle: Runs one update cycle on the root
//   - apply: Reconciles the scene with another CUE package
//   - publish, withdraw: Drive a data source
//   - availability: Reports availability straight to a representation
//   - request_render: Asks a view for a render, times: N repeats the request
//   - fail: Makes the next N constructions of a kind fail
//   - unmount: Signals removal of a view or representation
//   - close: Tears the scene down
//
// Any step may set expect_error: true to require a failure.
//
// # Assertion Types
//
//   - render_count: A view's window rendered exactly N times
//   - call_count: N recorded calls match op and kind
//   - call_order: "op" or "op:kind" entries appear in order
//   - visible: A representation's effective visibility
//   - journal_count: N journalled calls match op and kind
//   - cycle_count: N settle cycles were journalled
//   - deleted_order: The exact sequence of deleted kinds
//   - no_errors: No native call failed
//
// # Deterministic Testing
//
// The harness uses:
//   - A fixed root ID (from scenario.root_id or "test-root-default")
//   - One deterministic logical clock shared by the root and the recorder
//   - An in-memory SQLite journal (isolated per run)
//
// This ensures identical traces across runs for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/publish.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
