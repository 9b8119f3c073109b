package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MicroMetaKey is the reserved meta key that carries the micro marker on the
// wire. It is namespaced so it cannot collide with caller meta entries.
// Inside the process the marker lives in Action.Micro; this key is read and
// written only by the Action JSON codec.
const MicroMetaKey = "@@redux-micro-actions/micro"

// Marker is the three-state micro marker.
type Marker uint8

const (
	// MarkerAbsent means the action was never tagged.
	MarkerAbsent Marker = iota
	// MarkerActive means the action is micro and must be claimed by an
	// authorized middleware before it reaches the reducer.
	MarkerActive
	// MarkerCleared means the action was micro and has been released.
	MarkerCleared
)

func (m Marker) String() string {
	switch m {
	case MarkerAbsent:
		return "absent"
	case MarkerActive:
		return "active"
	case MarkerCleared:
		return "cleared"
	default:
		return fmt.Sprintf("marker(%d)", uint8(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Marker) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Marker) UnmarshalText(text []byte) error {
	parsed, err := ParseMarker(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMarker is the inverse of Marker.String.
func ParseMarker(s string) (Marker, error) {
	switch s {
	case "absent", "":
		return MarkerAbsent, nil
	case "active":
		return MarkerActive, nil
	case "cleared":
		return MarkerCleared, nil
	}
	return MarkerAbsent, fmt.Errorf("unknown marker %q", s)
}

// Action is a message dispatched to a store.
//
// Payload holds the domain fields; on the wire they sit next to "type" and
// "meta". Meta holds out-of-band caller annotations and never contains
// MicroMetaKey.
type Action struct {
	Type    string
	Payload Object
	Meta    Object
	Micro   Marker
}

// NewAction creates an untagged action.
func NewAction(actionType string, payload Object) *Action {
	return &Action{Type: actionType, Payload: payload}
}

// HasMeta reports whether the action carries a meta mapping on the wire:
// either caller meta or any marker state other than absent.
func (a *Action) HasMeta() bool {
	return a.Meta != nil || a.Micro != MarkerAbsent
}

// WireMeta returns the meta mapping as it appears on the wire, including
// the reserved marker key. Returns nil if the action has no meta.
func (a *Action) WireMeta() Object {
	if !a.HasMeta() {
		return nil
	}
	meta := make(Object, len(a.Meta)+1)
	for k, v := range a.Meta {
		meta[k] = v
	}
	switch a.Micro {
	case MarkerActive:
		meta[MicroMetaKey] = Bool(true)
	case MarkerCleared:
		meta[MicroMetaKey] = Bool(false)
	}
	return meta
}

// Wire returns the action as a single Object: payload fields, "type" and,
// when present, "meta".
func (a *Action) Wire() Object {
	obj := make(Object, len(a.Payload)+2)
	for k, v := range a.Payload {
		obj[k] = v
	}
	obj["type"] = String(a.Type)
	if meta := a.WireMeta(); meta != nil {
		obj["meta"] = meta
	}
	return obj
}

// MarshalJSON encodes the action in wire form with sorted keys.
func (a Action) MarshalJSON() ([]byte, error) {
	return a.Wire().MarshalJSON()
}

// UnmarshalJSON decodes a wire action. The reserved marker key is lifted out
// of meta: a truthy value yields MarkerActive, any other value MarkerCleared.
// A missing "type" decodes as the empty string.
func (a *Action) UnmarshalJSON(data []byte) error {
	v, err := ParseValue(data)
	if err != nil {
		return err
	}
	obj, ok := v.(Object)
	if !ok {
		return fmt.Errorf("action must be a JSON object, got %T", v)
	}
	decoded, err := ActionFromWire(obj)
	if err != nil {
		return err
	}
	*a = *decoded
	return nil
}

// ActionFromWire builds an Action from its wire Object.
func ActionFromWire(obj Object) (*Action, error) {
	a := &Action{}
	for k, v := range obj {
		switch k {
		case "type":
			s, ok := v.(String)
			if !ok {
				return nil, fmt.Errorf("action type must be a string, got %T", v)
			}
			a.Type = string(s)
		case "meta":
			if _, isNull := v.(Null); isNull {
				continue
			}
			meta, ok := v.(Object)
			if !ok {
				return nil, fmt.Errorf("action meta must be an object, got %T", v)
			}
			a.Meta = make(Object, len(meta))
			for mk, mv := range meta {
				if mk == MicroMetaKey {
					if Truthy(mv) {
						a.Micro = MarkerActive
					} else {
						a.Micro = MarkerCleared
					}
					continue
				}
				a.Meta[mk] = mv
			}
		default:
			if a.Payload == nil {
				a.Payload = make(Object)
			}
			a.Payload[k] = v
		}
	}
	return a, nil
}

// DecodeAction parses a wire action from JSON bytes.
func DecodeAction(data []byte) (*Action, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty action")
	}
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	return &a, nil
}

// PeekMarker reads only the type and micro marker of a wire action. Payload
// fields are not decoded, so content an Action cannot hold (such as floats)
// does not stop the marker from being read.
func PeekMarker(data []byte) (string, Marker, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", MarkerAbsent, fmt.Errorf("empty action")
	}
	var env struct {
		Type any            `json:"type"`
		Meta map[string]any `json:"meta"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", MarkerAbsent, fmt.Errorf("decode action: %w", err)
	}

	var actionType string
	if env.Type != nil {
		s, ok := env.Type.(string)
		if !ok {
			return "", MarkerAbsent, fmt.Errorf("action type must be a string, got %T", env.Type)
		}
		actionType = s
	}

	v, ok := env.Meta[MicroMetaKey]
	switch {
	case !ok:
		return actionType, MarkerAbsent, nil
	case truthyJSON(v):
		return actionType, MarkerActive, nil
	default:
		return actionType, MarkerCleared, nil
	}
}

// truthyJSON is Truthy for values decoded by encoding/json into any.
func truthyJSON(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	default:
		return true
	}
}
