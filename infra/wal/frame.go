package wal

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

// Frame:
// [type:1][seq:8][time:8][len:4][payload][crc:4]
const headerSize = 1 + 8 + 8 + 4

var ErrCorrupt = errors.New("wal: corrupt record")

func frameSize(r *Record) int { return headerSize + len(r.Data) + 4 }

// appendFrame encodes r onto buf.
func appendFrame(buf []byte, r *Record) []byte {
	start := len(buf)
	buf = append(buf, make([]byte, frameSize(r))...)
	f := buf[start:]

	f[0] = byte(r.Type)
	binary.BigEndian.PutUint64(f[1:9], r.Seq)
	binary.BigEndian.PutUint64(f[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(f[17:21], uint32(len(r.Data)))
	copy(f[headerSize:], r.Data)

	n := headerSize + len(r.Data)
	binary.BigEndian.PutUint32(f[n:], crc32.ChecksumIEEE(f[:n]))
	return buf
}

// readFrame decodes one record. A clean end of input is io.EOF; a partial
// frame is io.ErrUnexpectedEOF.
func readFrame(r io.Reader) (*Record, int, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, 0, err
	}

	l := binary.BigEndian.Uint32(header[17:21])
	data := make([]byte, l+4)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, 0, err
	}

	payload := data[:l]
	crc := binary.BigEndian.Uint32(data[l:])
	sum := crc32.NewIEEE()
	sum.Write(header)
	sum.Write(payload)
	if sum.Sum32() != crc {
		return nil, 0, ErrCorrupt
	}

	return &Record{
		Type: RecordType(header[0]),
		Seq:  binary.BigEndian.Uint64(header[1:9]),
		Time: int64(binary.BigEndian.Uint64(header[9:17])),
		Data: payload,
	}, headerSize + int(l) + 4, nil
}
