// Package scene is the composition layer: views, representations and data
// sources built on the engine package's synchronisation primitives.
//
// A View owns the renderer, render window, platform view, interactor and
// interactor style of one viewport and wires them in dependency order.
// Representations (slice, volume, geometry) each own a mapper and an actor
// plus their colour and opacity objects, and only become visible once
// their data source reports data. Scene reconciles a whole ir.SceneSpec
// against the mounted tree.
//
// Typical use:
//
//	root := engine.New(rec)
//	s, err := scene.Mount(root, spec)
//	...
//	report, err := s.Settle() // once per host update cycle
//
// Apply, Update and Publish only schedule work; properties are pushed
// inside Settle. Unmounting detaches actors at once but native deletions
// also wait for Settle.
package scene
