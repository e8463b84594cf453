package wal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const segmentGlob = "segment-*.wal"

type segment struct {
	file   *os.File
	index  int
	offset int64
}

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%06d.wal", index))
}

func segmentIndex(path string) (int, error) {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "segment-"), ".wal")
	return strconv.Atoi(name)
}

// listSegments returns segment paths in index order.
func listSegments(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, segmentGlob))
}

func openSegment(dir string, index int) (*segment, error) {
	f, err := os.OpenFile(segmentPath(dir, index), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	off, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &segment{file: f, index: index, offset: off}, nil
}

// append writes b and syncs it to stable storage.
func (s *segment) append(b []byte) error {
	n, err := s.file.Write(b)
	s.offset += int64(n)
	if err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *segment) close() error {
	return s.file.Close()
}
