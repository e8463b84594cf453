// Package orderbook holds the resting state of the exchange: orders, price
// levels, sides and books.
//
// Each side keeps its levels in an rbtree keyed so that the best price sorts
// first, and links every resting order in priority order so that matching
// can walk the side from its first order. A level exists only while it has
// members.
//
// The package never matches; it only applies fills, revisions and
// cancellations decided elsewhere. It is single-writer.
package orderbook
