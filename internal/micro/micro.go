package micro

import "github.com/roach88/microact/internal/ir"

// Creator builds an action from arbitrary arguments.
type Creator func(args ...any) *ir.Action

// Micro wraps a creator so every action it returns is tagged micro.
// The action is marked in place; a nil action is returned as nil.
func Micro(create Creator) Creator {
	return func(args ...any) *ir.Action {
		return Tag(create(args...))
	}
}

// Tag marks a as micro and returns it.
func Tag(a *ir.Action) *ir.Action {
	if a != nil {
		a.Micro = ir.MarkerActive
	}
	return a
}

// IsMicro reports whether a carries an active micro marker.
func IsMicro(a *ir.Action) bool {
	return a != nil && a.Micro == ir.MarkerActive
}

// Clear releases the micro marker. An action with any marker or any meta
// ends up cleared; an action with neither is left untouched, since there is
// nothing to release. Clearing never makes an action micro.
func Clear(a *ir.Action) *ir.Action {
	if a != nil && a.HasMeta() {
		a.Micro = ir.MarkerCleared
	}
	return a
}
