package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scenesync/internal/compiler"
	"github.com/roach88/scenesync/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledScene is one scene in compile output, keyed by its content hash.
type CompiledScene struct {
	Name     string       `json:"name"`
	SpecHash string       `json:"spec_hash"`
	Spec     ir.SceneSpec `json:"spec"`
}

// CompilationResult holds the compiled scenes.
type CompilationResult struct {
	Scenes []CompiledScene `json:"scenes"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	SceneCount          int
	SourceCount         int
	ViewCount           int
	RepresentationCount int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <scene-dir>",
		Short: "Compile CUE scenes to canonical IR",
		Long: `Compile CUE scene descriptions to the scene IR.

The compiler unifies every scene with the schema, applies defaults,
validates the result and outputs it together with its content hash.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, sceneDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadScenes(sceneDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.Logger().Debug("found CUE files", "count", loadResult.FileCount, "dir", sceneDir)

	errs := loadErrors
	for _, spec := range loadResult.Scenes {
		formatter.Logger().Debug("compiling scene", "scene", spec.Name)
		for _, verr := range compiler.Validate(spec) {
			errs = append(errs, verr)
		}
	}
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	result, err := buildCompilationResult(loadResult.Scenes)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	stats := calculateStats(result)

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

func buildCompilationResult(specs []ir.SceneSpec) (*CompilationResult, error) {
	result := &CompilationResult{Scenes: make([]CompiledScene, 0, len(specs))}
	for _, spec := range specs {
		hash, err := ir.SpecHash(spec)
		if err != nil {
			return nil, fmt.Errorf("hashing scene %s: %w", spec.Name, err)
		}
		result.Scenes = append(result.Scenes, CompiledScene{Name: spec.Name, SpecHash: hash, Spec: spec})
	}
	return result, nil
}

func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{SceneCount: len(result.Scenes)}
	for _, scene := range result.Scenes {
		stats.SourceCount += len(scene.Spec.Sources)
		stats.ViewCount += len(scene.Spec.Views)
		for _, view := range scene.Spec.Views {
			stats.RepresentationCount += len(view.Representations)
		}
	}
	return stats
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%s Compiled %d scene(s): %d source(s), %d view(s), %d representation(s)\n\n",
		markOK, stats.SceneCount, stats.SourceCount, stats.ViewCount, stats.RepresentationCount)

	for _, scene := range result.Scenes {
		fmt.Fprintf(formatter.Writer, "  %s  %s\n", scene.Name, shortHash(scene.SpecHash))
		for _, view := range scene.Spec.Views {
			fmt.Fprintf(formatter.Writer, "    view %s -> %s: %d representation(s)\n",
				view.Key, view.Container, len(view.Representations))
		}
	}
	fmt.Fprintln(formatter.Writer)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote scene IR to %s\n", outputFile)
	}
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	failure := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintf(formatter.Writer, "%s Compilation failed\n\n", markFail)
	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}
	return failure
}

func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code, verr.Field + ": " + verr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the compilation result as indented JSON. Hashes are
// computed over the canonical form, not this file.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
