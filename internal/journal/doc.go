// Package journal records every dispatch that passes through a store's
// middleware chain.
//
// Middleware is installed first in ApplyMiddleware so it wraps the whole
// chain. Because middleware re-dispatch re-enters the chain from the top, it
// also sees every nested dispatch, stamped one level deeper:
//
//	root dispatch (depth 0, new flow token, seq n)
//	  └─ api.Dispatch from a middleware (depth 1, same flow, seq n+1)
//
// Each record carries the action as it looked on entry (wire form and
// marker) and the outcome once the chain returned. Journal failures are
// logged and never change the dispatch result.
package journal
