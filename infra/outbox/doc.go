// Package outbox is a durable queue of exec events awaiting delivery.
//
// Each entry is keyed exec/<id> and moves NEW → SENT → ACKED, or to
// FAILED with a retry count. ACKED entries are deleted by the broadcaster.
package outbox
