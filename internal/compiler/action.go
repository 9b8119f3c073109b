package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/microact/internal/ir"
)

// CompileAction parses a CUE value into an ActionSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the action struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`action: TEST: { micro: true, payload: { n: int } }`)
//	spec, err := CompileAction(v.LookupPath(cue.ParsePath("action.TEST")))
//
// The action type is the struct label. All fields are optional:
// description (string), micro (bool, default false) and payload (struct of
// field name to type).
func CompileAction(v cue.Value) (*ir.ActionSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ActionSpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Type = labels[len(labels)-1].Unquoted()
	}
	if spec.Type == "" {
		return nil, &CompileError{
			Field:   "type",
			Message: "action type label is required",
			Pos:     v.Pos(),
		}
	}

	if k := v.IncompleteKind(); k != cue.StructKind {
		return nil, &CompileError{
			Field:   "action." + spec.Type,
			Message: fmt.Sprintf("action must be a struct, got %v", k),
			Pos:     v.Pos(),
		}
	}

	descVal := v.LookupPath(cue.ParsePath("description"))
	if descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Description = desc
	}

	microVal := v.LookupPath(cue.ParsePath("micro"))
	if microVal.Exists() {
		isMicro, err := microVal.Bool()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("action.%s.micro", spec.Type),
				Message: "micro must be a concrete bool",
				Pos:     microVal.Pos(),
			}
		}
		spec.Micro = isMicro
	}

	payload, err := parsePayload(v, spec.Type)
	if err != nil {
		return nil, err
	}
	spec.Payload = payload

	return spec, nil
}

// parsePayload extracts the payload field types of an action.
func parsePayload(v cue.Value, actionType string) (map[string]string, error) {
	payloadVal := v.LookupPath(cue.ParsePath("payload"))
	if !payloadVal.Exists() {
		return nil, nil
	}

	iter, err := payloadVal.Fields(cue.Optional(true))
	if err != nil {
		return nil, formatCUEError(err)
	}

	fields := make(map[string]string)
	for iter.Next() {
		fieldName := iter.Selector().Unquoted()
		fieldType, err := extractTypeName(iter.Value())
		if err != nil {
			var ce *CompileError
			if errors.As(err, &ce) {
				ce.Field = fmt.Sprintf("action.%s.payload.%s", actionType, fieldName)
			}
			return nil, err
		}
		fields[fieldName] = fieldType
	}

	return fields, nil
}

// extractTypeName converts a CUE type to a catalog type name.
// Floats are forbidden: payload hashes must be deterministic.
func extractTypeName(v cue.Value) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return "string", nil
	case cue.IntKind:
		return "int", nil
	case cue.BoolKind:
		return "bool", nil
	case cue.ListKind:
		return "array", nil
	case cue.StructKind:
		return "object", nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsCompileError returns true if err is or wraps a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
