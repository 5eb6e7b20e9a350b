package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/scenesync/internal/compiler"
	"github.com/roach88/scenesync/internal/ir"
)

// LoadMode controls how errors are handled during scene loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading scenes from a directory.
type LoadResult struct {
	Scenes    []ir.SceneSpec
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during scene loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadScenes loads and compiles the CUE scenes in a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadScenes(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scene directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing scene directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	value, err := compiler.LoadInstance(dir)
	if err != nil {
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) {
			return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: compileErr.Message, Pos: compileErr.Pos}}
		}
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	scenes, compileErrs := compiler.CompileScenes(value)
	result.Scenes = scenes

	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	if len(result.Scenes) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoScenes, Message: "no scenes found (declare them under scene: <name>:)"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	context := ""
	var sceneErr *compiler.SceneError
	if errors.As(err, &sceneErr) {
		context = "scene." + sceneErr.Scene + ": "
	}

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: context + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeSchema      = "E008" // Scene does not satisfy the schema
	ErrCodeNoScenes    = "E009" // No scene declared
	ErrCodeDecode      = "E010" // Field could not be decoded
	ErrCodeDatabase    = "E011" // Journal open/read/write error
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "":
		return ErrCodeGeneric
	case "cue":
		return ErrCodeSchema
	default:
		return ErrCodeDecode
	}
}
