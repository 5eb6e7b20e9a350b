package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/scenesync/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Scenes int                        `json:"scenes"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scene-dir>",
		Short: "Validate scenes without mounting them",
		Long: `Validate CUE scene descriptions.

Checks every scene against the schema, then runs the consistency rules
the schema cannot express: unique keys, declared sources, one view per
container, ordered bounds and well-formed property blocks.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, sceneDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadScenes(sceneDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.Logger().Debug("found CUE files", "count", loadResult.FileCount, "dir", sceneDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr.Pos),
			})
		}
	}
	for _, spec := range loadResult.Scenes {
		formatter.Logger().Debug("validating scene", "scene", spec.Name)
		for _, verr := range compiler.Validate(spec) {
			verr.Field = spec.Name + "." + verr.Field
			validationErrors = append(validationErrors, verr)
		}
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, len(loadResult.Scenes))
}

func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

func outputValidateSuccess(formatter *OutputFormatter, scenes int) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Scenes: scenes})
	}

	fmt.Fprintf(formatter.Writer, "%s %d scene(s) valid\n", markOK, scenes)
	return nil
}

func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintf(formatter.Writer, "%s Validation failed\n\n", markFail)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failure
}

// ValidateSceneDir loads and validates every scene in a directory.
// Load failures that prevent reading the directory come back as an error.
func ValidateSceneDir(sceneDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadScenes(sceneDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	var errs []compiler.ValidationError
	for _, err := range loadErrors {
		errs = append(errs, compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric})
	}
	for _, spec := range loadResult.Scenes {
		errs = append(errs, compiler.Validate(spec)...)
	}
	return errs, nil
}
