// Package ir provides the action and value types shared by every microact
// package.
//
// This package contains type definitions and codecs only. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - The micro marker is an explicit three-state Marker, never a key in Meta
//   - The reserved meta key exists only at the JSON wire boundary
//   - NO float types anywhere - use int64 for numbers
//   - All JSON tags use snake_case
package ir
