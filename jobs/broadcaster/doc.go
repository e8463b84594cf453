// Package broadcaster implements a background job that periodically
// scans the outbox for undelivered exec events and publishes them
// to Kafka.
package broadcaster
