// Package matching implements price-time priority matching. The Engine
// turns one incoming order into a Transaction of Matches without touching
// the book; applying the transaction is left to the service layer, which
// first makes it durable.
package matching
