package sequence

import "fmt"

// Reserver durably records the highest id that may have been issued.
type Reserver interface {
	Reserve(hi uint64) error
}

// Blocks issues ids from a Sequencer and reserves them ahead in blocks, so
// a restart resumes above every id that could have been handed out without
// persisting each one. Ids skipped by a restart are never reused.
type Blocks struct {
	seq  *Sequencer
	size uint64
	hi   uint64
	res  Reserver
}

// NewBlocks resumes after hi, the last reserved id read back from storage.
func NewBlocks(hi, size uint64, res Reserver) *Blocks {
	if size == 0 {
		size = 1
	}
	return &Blocks{
		seq:  New(hi),
		size: size,
		hi:   hi,
		res:  res,
	}
}

// AllocID returns the next id, reserving a new block first when the current
// one is exhausted.
func (b *Blocks) AllocID() (uint64, error) {
	if b.seq.Current() >= b.hi {
		hi := b.hi + b.size
		if err := b.res.Reserve(hi); err != nil {
			return 0, fmt.Errorf("reserve ids to %d: %w", hi, err)
		}
		b.hi = hi
	}
	return b.seq.Next(), nil
}

// Current returns the last issued id.
func (b *Blocks) Current() uint64 { return b.seq.Current() }

// Reserved returns the reserved high-water mark.
func (b *Blocks) Reserved() uint64 { return b.hi }

// Skip moves the sequence forward to at least id. Replay uses it when the
// journal shows ids above the reserved mark.
func (b *Blocks) Skip(id uint64) {
	b.seq.AdvanceTo(id)
	if id > b.hi {
		b.hi = id
	}
}
