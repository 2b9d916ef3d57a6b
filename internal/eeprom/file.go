package eeprom

import (
	"fmt"
	"os"
	"path/filepath"
)

// File emulates an EEPROM with a fixed-size file, for hosts without one. A
// missing file is created fully erased.
type File struct {
	f    *os.File
	size int64
}

func OpenFile(path string, size int64) (*File, error) {
	if size <= 0 {
		return nil, fmt.Errorf("eeprom: invalid size %d", size)
	}
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.Size() < size {
		blank := make([]byte, size-st.Size())
		for i := range blank {
			blank[i] = 0xFF
		}
		if _, err := f.WriteAt(blank, st.Size()); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("eeprom: initialize %s: %w", path, err)
		}
	}
	return &File{f: f, size: size}, nil
}

func (e *File) Size() int64 { return e.size }

func (e *File) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), e.size); err != nil {
		return 0, err
	}
	return e.f.ReadAt(p, off)
}

// WriteAt skips the write when the stored bytes already match.
func (e *File) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), e.size); err != nil {
		return 0, err
	}
	cur := make([]byte, len(p))
	if _, err := e.f.ReadAt(cur, off); err == nil && string(cur) == string(p) {
		return len(p), nil
	}
	n, err := e.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, e.f.Sync()
}

func (e *File) Close() error {
	if e == nil || e.f == nil {
		return nil
	}
	err := e.f.Close()
	e.f = nil
	return err
}
