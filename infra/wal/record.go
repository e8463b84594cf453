package wal

import (
	"github.com/sauravnith/swirly/domain/orderbook"
)

// RecordType defines WAL intent.
type RecordType uint8

const (
	RecordOrder RecordType = iota + 1
	RecordUpdate
	RecordExec
	RecordArchiveOrder
	RecordArchiveTrade
	// RecordCommit terminates a transaction group. Records before it are
	// applied on replay only once it is seen.
	RecordCommit
	// RecordIDs stands alone and applies immediately.
	RecordIDs
)

func (t RecordType) String() string {
	switch t {
	case RecordOrder:
		return "ORDER"
	case RecordUpdate:
		return "UPDATE"
	case RecordExec:
		return "EXEC"
	case RecordArchiveOrder:
		return "ARCHIVE_ORDER"
	case RecordArchiveTrade:
		return "ARCHIVE_TRADE"
	case RecordCommit:
		return "COMMIT"
	case RecordIDs:
		return "IDS"
	default:
		return "UNKNOWN"
	}
}

// Record is an immutable WAL entry.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

// Payloads, JSON encoded. Orders and execs are stored as themselves.

type updateEntry struct {
	ID       uint64           `json:"id"`
	Rev      int32            `json:"rev"`
	Status   orderbook.Status `json:"status"`
	Resd     int64            `json:"resd"`
	Exec     int64            `json:"exec"`
	Lots     int64            `json:"lots"`
	Modified int64            `json:"modified"`
}

type archiveEntry struct {
	ID   uint64 `json:"id"`
	Time int64  `json:"time"`
}

type idsEntry struct {
	Hi uint64 `json:"hi"`
}
