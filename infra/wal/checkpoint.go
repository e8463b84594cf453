package wal

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sauravnith/swirly/snapshot"
)

// Checkpoint writes the committed image to disk and removes every segment
// it fully covers. It must not run inside a transaction.
func (j *Journal) Checkpoint() error {
	if j.open {
		return ErrInTransaction
	}
	s := j.st.snapshot()
	s.Created = j.now()
	if err := snapshot.Write(filepath.Join(j.dir, checkpointFile), s); err != nil {
		return err
	}
	if err := j.rotate(); err != nil {
		return err
	}
	removed, err := j.TruncateBefore(s.Seq)
	if err != nil {
		return err
	}
	j.log.Info("wal_checkpoint",
		zap.Uint64("seq", s.Seq),
		zap.Int("orders", len(s.Orders)),
		zap.Int("segments_removed", removed),
	)
	return nil
}

// TruncateBefore removes closed segments whose records all have sequence
// at most seq.
func (j *Journal) TruncateBefore(seq uint64) (int, error) {
	files, err := listSegments(j.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range files {
		idx, err := segmentIndex(path)
		if err != nil || idx >= j.current.index {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// RunCheckpoints calls fn every interval until stop is closed. fn must
// serialize with the writer; the server passes a closure that takes the
// exchange lock.
func RunCheckpoints(interval time.Duration, stop <-chan struct{}, fn func() error, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := fn(); err != nil {
				log.Warn("wal_checkpoint_failed", zap.Error(err))
			}
		case <-stop:
			return
		}
	}
}
