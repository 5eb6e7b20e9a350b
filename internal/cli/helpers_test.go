package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ctSceneDir is the two-view scene shared with the harness scenarios.
var ctSceneDir = filepath.Join("..", "harness", "testdata", "scenes", "ct")

const validSceneCUE = `
package scenes

scene: head: {
	sources: {
		ct: {
			dataset:   "ct-001"
			bounds:    [0, 10, 0, 10, 0, 10]
			available: true
		}
		mesh: bounds: [-1, 1, -1, 1, -1, 1]
	}
	views: {
		axial: {
			container: "left"
			representations: s1: {type: "slice", source: "ct"}
		}
		"3d": {
			container: "right"
			representations: {
				g1: {type: "geometry", source: "mesh"}
				g2: {type: "geometry", source: "mesh", visible: false}
			}
		}
	}
}
`

// writeSceneDir writes files (name -> contents) into a fresh directory.
func writeSceneDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	}
	return dir
}
