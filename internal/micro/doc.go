// Package micro implements the micro-action convention on top of a dispatch
// store.
//
// A micro action is meant for exactly one middleware. It is created through
// a tagging creator (Micro), recognised with IsMicro, released by wrapping
// the one middleware allowed to consume it (AllowMicro) and stopped at the
// root of the store if nobody released it (DenyMicro).
//
// Marker lifecycle per action:
//
//	absent --Micro/Tag--> active --AllowMicro dispatch--> cleared
//	                         |
//	                         +--reaches DenyMicro--> callback error (denied)
//	                                             \-> callback nil (permitted, still active)
//
// Typical wiring:
//
//	st := dispatch.CreateStore(reducer, initial, dispatch.Compose(
//	    dispatch.ApplyMiddleware(logger, micro.AllowMicro(router)),
//	    micro.DenyMicro[State](),
//	))
//
// Everything here runs synchronously inside the dispatching call; no wrapper
// holds mutable state, so re-entrant dispatch is safe.
package micro
