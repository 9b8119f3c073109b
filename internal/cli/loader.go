package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/microact/internal/compiler"
)

// Error code constants shared by all CLI commands. Catalog validation codes
// (E1xx) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load or build failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBadInput    = "E006" // Unparseable input
	ErrCodeWriteFailed = "E007" // File write error
)

// LoadError is a catalog directory that could not be loaded at all.
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

// loadCatalog loads a catalog directory. A *LoadError means nothing could
// be compiled; otherwise the returned problems are per-action errors and
// the catalog holds the actions that compiled.
func loadCatalog(dir string) (*compiler.Catalog, []compiler.ValidationError, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}
	}
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	cat, errs := compiler.LoadCatalog(dir)
	if cat == nil {
		return nil, nil, toLoadError(errs)
	}
	return cat, toValidationErrors(errs), nil
}

func toLoadError(errs []error) *LoadError {
	if len(errs) == 0 {
		return &LoadError{Code: ErrCodeLoadFailed, Message: "catalog could not be loaded"}
	}
	var ce *compiler.CompileError
	if errors.As(errs[0], &ce) {
		return &LoadError{Code: ErrCodeLoadFailed, Message: ce.Message, Pos: ce.Pos}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: errs[0].Error()}
}

// toValidationErrors gives every catalog problem a code and, when known,
// a line number.
func toValidationErrors(errs []error) []compiler.ValidationError {
	out := make([]compiler.ValidationError, 0, len(errs))
	for _, err := range errs {
		var ve compiler.ValidationError
		if errors.As(err, &ve) {
			out = append(out, ve)
			continue
		}

		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			out = append(out, compiler.ValidationError{
				Field:   ce.Field,
				Message: ce.Message,
				Code:    compileErrorCode(ce),
				Line:    lineOf(ce.Pos),
			})
			continue
		}

		out = append(out, compiler.ValidationError{
			Field:   "catalog",
			Message: err.Error(),
			Code:    ErrCodeGeneric,
		})
	}
	return out
}

// compileErrorCode maps a compile error to a validation code.
func compileErrorCode(ce *compiler.CompileError) string {
	switch {
	case ce.Field == "cue":
		return ErrCodeLoadFailed
	case ce.Field == "type":
		return compiler.ErrActionTypeEmpty
	case strings.Contains(ce.Field, ".payload."):
		if strings.Contains(ce.Message, "float") {
			return compiler.ErrFloatTypeForbidden
		}
		return compiler.ErrInvalidFieldType
	default:
		return ErrCodeGeneric
	}
}

func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}
