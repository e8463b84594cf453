// Package store is the pebble journal backend.
//
// Orders, executions and positions are kept as JSON values under the
// order/, exec/ and posn/ prefixes. A transaction is one indexed batch,
// committed with pebble.Sync. The same database answers the state half of
// the model on startup.
package store
