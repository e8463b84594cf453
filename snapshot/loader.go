package snapshot

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Load reads the checkpoint at path. A missing file yields nil and no
// error: the checkpoint is optional.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &s, nil
}
