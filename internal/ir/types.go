package ir

import (
	"fmt"
	"sort"
)

// Outcome classifies how a dispatch ended.
type Outcome string

const (
	// OutcomeOK means dispatch returned without error.
	OutcomeOK Outcome = "ok"
	// OutcomeDenied means a micro action was stopped by the terminal guard,
	// either at this dispatch or at one it triggered.
	OutcomeDenied Outcome = "denied"
	// OutcomeFailed means dispatch returned any other error.
	OutcomeFailed Outcome = "failed"
)

// DispatchRecord is one journal entry: a single call into a store's
// dispatch chain, root or re-entrant.
type DispatchRecord struct {
	ID            string  `json:"id"` // Content-addressed hash
	FlowToken     string  `json:"flow_token"`
	Seq           int64   `json:"seq"`   // Logical clock, stamped at entry
	Depth         int     `json:"depth"` // 0 for root dispatches
	ActionType    string  `json:"action_type"`
	Marker        Marker  `json:"marker"` // Marker at entry
	Action        Object  `json:"action"` // Wire form at entry
	Outcome       Outcome `json:"outcome"`
	Error         string  `json:"error,omitempty"`
	EngineVersion string  `json:"engine_version"`
	IRVersion     string  `json:"ir_version"`
}

// ValidTypes lists the allowed payload field types in an action catalog.
var ValidTypes = map[string]bool{
	"string": true,
	"int":    true,
	"bool":   true,
	"array":  true,
	"object": true,
}

// ActionSpec is a compiled action catalog entry.
type ActionSpec struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Micro       bool              `json:"micro"`
	Payload     map[string]string `json:"payload,omitempty"` // field name -> type name
}

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the action spec against schema rules.
// Returns all errors (not fail-fast).
func (s *ActionSpec) Validate() []ValidationError {
	var errs []ValidationError

	if s.Type == "" {
		errs = append(errs, ValidationError{Field: "type", Message: "action type is required"})
	}

	fields := make([]string, 0, len(s.Payload))
	for name := range s.Payload {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	for _, name := range fields {
		if name == "type" || name == "meta" {
			errs = append(errs, ValidationError{
				Field:   "payload." + name,
				Message: fmt.Sprintf("%q is reserved by the action wire format", name),
			})
			continue
		}
		if typ := s.Payload[name]; !ValidTypes[typ] {
			errs = append(errs, ValidationError{
				Field:   "payload." + name,
				Message: fmt.Sprintf("invalid type %q, must be one of: string, int, bool, array, object", typ),
			})
		}
	}

	return errs
}

// CheckPayload verifies that payload matches the declared field types.
// Undeclared fields and missing fields are both errors.
func (s *ActionSpec) CheckPayload(payload Object) []ValidationError {
	var errs []ValidationError

	for _, k := range payload.SortedKeys() {
		typ, ok := s.Payload[k]
		if !ok {
			errs = append(errs, ValidationError{Field: "payload." + k, Message: "undeclared field"})
			continue
		}
		if got := TypeName(payload[k]); got != typ {
			errs = append(errs, ValidationError{
				Field:   "payload." + k,
				Message: fmt.Sprintf("expected %s, got %s", typ, got),
			})
		}
	}

	fields := make([]string, 0, len(s.Payload))
	for name := range s.Payload {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	for _, name := range fields {
		if _, ok := payload[name]; !ok {
			errs = append(errs, ValidationError{Field: "payload." + name, Message: "missing field"})
		}
	}

	return errs
}

// TypeName returns the catalog type name of a value.
func TypeName(v Value) string {
	switch v.(type) {
	case String:
		return "string"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "null"
	}
}
