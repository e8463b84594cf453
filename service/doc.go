// Package service orchestrates the core components of the exchange:
// books, matching, traders, accounts and the journal.
//
// It provides the command and query API for placing, revising, cancelling
// and archiving orders, decoupled from network transports like gRPC.
package service
