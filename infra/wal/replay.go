package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// replay applies every committed group in the segments to st. A torn or
// uncommitted tail on the last segment is cut off; damage anywhere else is
// an error. It returns the index of the last segment, or -1 if none exist.
func replay(dir string, st *state, log *zap.Logger) (int, error) {
	files, err := listSegments(dir)
	if err != nil {
		return -1, err
	}

	last := -1
	for i, path := range files {
		idx, err := segmentIndex(path)
		if err != nil {
			return last, fmt.Errorf("segment name %s: %w", path, err)
		}
		last = idx

		tail := i == len(files)-1
		safe, err := replaySegment(path, st)
		if err == nil {
			continue
		}
		if !tail || !torn(err) {
			return last, fmt.Errorf("replay %s: %w", path, err)
		}
		log.Warn("wal_tail_truncated",
			zap.String("segment", path),
			zap.Int64("offset", safe),
			zap.Error(err),
		)
		if err := os.Truncate(path, safe); err != nil {
			return last, err
		}
	}
	return last, nil
}

var errUncommitted = errors.New("uncommitted group")

// replaySegment returns the offset just past the last complete group.
func replaySegment(path string, st *state) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var (
		offset  int64
		safe    int64
		prev    uint64
		pending []*Record
	)
	for {
		rec, n, err := readFrame(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return safe, err
		}
		offset += int64(n)

		if rec.Seq <= prev {
			return safe, fmt.Errorf("%w: non-monotonic seq %d", ErrCorrupt, rec.Seq)
		}
		prev = rec.Seq
		if rec.Seq <= st.seq {
			// Covered by the checkpoint.
			safe = offset
			continue
		}

		switch rec.Type {
		case RecordCommit:
			for _, p := range pending {
				if err := st.apply(p); err != nil {
					return safe, fmt.Errorf("seq %d: %w", p.Seq, err)
				}
			}
			pending = pending[:0]
			st.seq = rec.Seq
		case RecordIDs:
			if err := st.apply(rec); err != nil {
				return safe, fmt.Errorf("seq %d: %w", rec.Seq, err)
			}
			st.seq = rec.Seq
		default:
			pending = append(pending, rec)
		}
		if len(pending) == 0 {
			safe = offset
		}
	}
	if len(pending) > 0 {
		return safe, errUncommitted
	}
	return safe, nil
}

// torn reports whether err describes damage a crash can leave at the end of
// the log.
func torn(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, ErrCorrupt) ||
		errors.Is(err, errUncommitted)
}

// maxSeqInSegment scans a WAL segment and returns the maximum sequence ID found.
// It is used ONLY for checkpoint-based truncation.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64
	r := bufio.NewReader(f)
	for {
		rec, _, err := readFrame(r)
		if err == io.EOF {
			return max, nil
		}
		if err != nil {
			return max, err
		}
		if rec.Seq > max {
			max = rec.Seq
		}
	}
}
