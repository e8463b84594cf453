// Package rbtree implements the ordered index shared by the order book and
// the account tables: a red-black tree keyed by a signed 64-bit ordering key.
//
// The same tree orders price levels (keyed by signed ticks so that the best
// price always sorts first) and indexes records by identifier (orders,
// trades, positions, books). Nodes are handed out to callers so that a
// record holding its own node can be detached in O(log n) without a lookup.
//
// Trees are not safe for concurrent use.
package rbtree
