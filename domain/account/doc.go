// Package account holds the per-participant side of the exchange: traders
// with their orders and execution history, accounts with their positions,
// and the reference-counted execution records shared between them.
package account
