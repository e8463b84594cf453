// Package memory provides typed object pooling for short-lived records
// that are allocated on the matching path, such as execution records that
// are discarded when a transaction rolls back.
package memory
