package store

import (
	"bytes"
	"fmt"
)

var (
	prefixOrder = []byte("order/")
	prefixExec  = []byte("exec/")
	prefixPosn  = []byte("posn/")
	keyIDs      = []byte("meta/ids")
)

func orderKey(id uint64) []byte { return []byte(fmt.Sprintf("order/%020d", id)) }
func execKey(id uint64) []byte  { return []byte(fmt.Sprintf("exec/%020d", id)) }
func posnKey(k int64) []byte    { return []byte(fmt.Sprintf("posn/%020d", k)) }

// upperBound returns the smallest key greater than every key with prefix.
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
