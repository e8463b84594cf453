// Package wal is the segment-file journal backend.
//
// Every record is framed as [type:1][seq:8][time:8][len:4][payload][crc:4]
// with a big-endian header and an IEEE CRC over header and payload.
// Transactions are written as a group terminated by a COMMIT record; replay
// applies a group only when its COMMIT is present and cuts off a torn tail.
package wal
