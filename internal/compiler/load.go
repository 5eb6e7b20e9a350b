package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/scenesync/internal/ir"
)

// LoadInstance loads the CUE package in dir and builds it into a value.
func LoadInstance(dir string) (cue.Value, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// SceneError ties a compile failure to the scene label it came from.
type SceneError struct {
	Scene string
	Err   error
}

func (e *SceneError) Error() string {
	return fmt.Sprintf("scene.%s: %v", e.Scene, e.Err)
}

func (e *SceneError) Unwrap() error {
	return e.Err
}

// CompileScenes compiles every field under the top-level "scene" struct of v.
// Every scene is attempted; failures come back as *SceneError in declaration
// order alongside the scenes that did compile.
func CompileScenes(v cue.Value) ([]ir.SceneSpec, []error) {
	scenes := v.LookupPath(cue.ParsePath("scene"))
	if !scenes.Exists() {
		return nil, nil
	}

	iter, err := scenes.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		specs []ir.SceneSpec
		errs  []error
	)
	for iter.Next() {
		label := selectorName(iter.Selector())
		spec, err := CompileScene(iter.Value())
		if err != nil {
			errs = append(errs, &SceneError{Scene: label, Err: err})
			continue
		}
		specs = append(specs, *spec)
	}
	return specs, errs
}
