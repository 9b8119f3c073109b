package compiler

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/microact/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Action declaration errors (E101-E109)
	ErrActionTypeEmpty    = "E101" // action type is required
	ErrInvalidActionType  = "E102" // action type has an invalid format
	ErrReservedPrefix     = "E103" // action type uses the reserved @@ prefix
	ErrInvalidFieldType   = "E104" // invalid payload type string
	ErrReservedField      = "E105" // payload field shadows the wire format
	ErrFloatTypeForbidden = "E106" // float types not allowed

	// Reaction errors (E110-E119)
	ErrReactionTrigger = "E110" // reaction has no trigger type
	ErrReactionEmit    = "E111" // reaction has no emitted type
	ErrReactionUnknown = "E112" // reaction refers to an undeclared type
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// actionTypePattern accepts conventional action type names such as
// "TEST", "cart/ADD_ITEM" or "todo.toggled".
var actionTypePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_./:-]*$`)

// Validate validates a compiled action declaration.
// Returns all errors found (does not fail-fast).
func Validate(spec *ir.ActionSpec) []ValidationError {
	var errs []ValidationError
	prefix := "action." + spec.Type

	switch {
	case strings.TrimSpace(spec.Type) == "":
		errs = append(errs, ValidationError{
			Field:   "type",
			Message: "action type is required and must be non-empty",
			Code:    ErrActionTypeEmpty,
		})
		prefix = "action"
	case strings.HasPrefix(spec.Type, "@@"):
		errs = append(errs, ValidationError{
			Field:   prefix,
			Message: fmt.Sprintf("action type %q uses the reserved @@ prefix", spec.Type),
			Code:    ErrReservedPrefix,
		})
	case !actionTypePattern.MatchString(spec.Type):
		errs = append(errs, ValidationError{
			Field:   prefix,
			Message: fmt.Sprintf("invalid action type %q", spec.Type),
			Code:    ErrInvalidActionType,
		})
	}

	fields := make([]string, 0, len(spec.Payload))
	for name := range spec.Payload {
		fields = append(fields, name)
	}
	slices.Sort(fields)

	for _, name := range fields {
		path := prefix + ".payload." + name
		if name == "type" || name == "meta" {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("%q is reserved by the action wire format", name),
				Code:    ErrReservedField,
			})
			continue
		}
		errs = append(errs, validateFieldType(spec.Payload[name], path, name)...)
	}

	return errs
}

// validateFieldType validates a type string, returning errors for invalid types and floats.
func validateFieldType(fieldType, fieldPath, fieldName string) []ValidationError {
	if isFloatType(fieldType) {
		return []ValidationError{{
			Field:   fieldPath,
			Message: fmt.Sprintf("float type forbidden for field %q, use int instead", fieldName),
			Code:    ErrFloatTypeForbidden,
		}}
	}
	if !ir.ValidTypes[fieldType] {
		return []ValidationError{{
			Field:   fieldPath,
			Message: fmt.Sprintf("invalid type %q for field %q", fieldType, fieldName),
			Code:    ErrInvalidFieldType,
		}}
	}
	return nil
}

// isFloatType checks if a type string represents a float type.
func isFloatType(t string) bool {
	switch strings.ToLower(t) {
	case "float", "float32", "float64", "double", "number":
		return true
	}
	return false
}

// Reaction is one "when X is dispatched, dispatch Y" rule of a middleware.
type Reaction struct {
	Middleware string
	When       string
	Emit       string
}

// ValidateReactions checks reactions against a catalog. A nil catalog only
// checks that both ends are present.
func ValidateReactions(reactions []Reaction, cat *Catalog) []ValidationError {
	var errs []ValidationError
	for i, r := range reactions {
		field := fmt.Sprintf("middleware.%s.reactions[%d]", r.Middleware, i)
		if r.When == "" {
			errs = append(errs, ValidationError{Field: field + ".when", Message: "trigger type is required", Code: ErrReactionTrigger})
		}
		if r.Emit == "" {
			errs = append(errs, ValidationError{Field: field + ".emit", Message: "emitted type is required", Code: ErrReactionEmit})
		}
		if cat == nil {
			continue
		}
		if r.Emit != "" {
			if _, ok := cat.Lookup(r.Emit); !ok {
				errs = append(errs, ValidationError{
					Field:   field + ".emit",
					Message: fmt.Sprintf("action type %q is not declared in the catalog", r.Emit),
					Code:    ErrReactionUnknown,
				})
			}
		}
	}
	return errs
}
