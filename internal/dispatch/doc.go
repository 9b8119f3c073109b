// Package dispatch implements the host store that micro actions travel
// through: a single reducer, an enhancer pipeline and a middleware chain.
//
// ARCHITECTURE:
//
// Store creation follows the enhancer convention. A StoreCreator builds a
// Store from a reducer and preloaded state; an Enhancer wraps a StoreCreator
// and returns another. CreateStore composes the enhancers right-to-left
// around the base store, so Compose(ApplyMiddleware(...), guard) puts the
// middleware chain outside the guard.
//
// Wrapping is done by composition, never by copying a store and replacing a
// method: every enhancer returns its own Store type that embeds the inner
// Store and overrides Dispatch.
//
// Dispatch Flow:
//  1. Store.Dispatch enters the composed middleware chain
//  2. Each middleware calls next to continue, or API.Dispatch to re-enter
//     the chain from the top (re-entrant dispatch)
//  3. The tail of the chain calls the inner store's Dispatch
//  4. The base store runs the reducer and then notifies listeners
//
// CRITICAL PATTERNS:
//
// Single Writer:
// A Store is not safe for concurrent use. Every dispatch, including nested
// ones, runs synchronously on the calling goroutine.
//
// Bounded Re-entrance:
// API.Dispatch increments a depth counter carried in the context and fails
// with DepthExceededError past the configured limit, so a middleware that
// re-dispatches unconditionally cannot recurse forever.
package dispatch
