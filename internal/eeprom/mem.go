package eeprom

import (
	"fmt"
	"sync"
)

// Mem is an in-memory EEPROM image. It starts fully erased and counts writes
// per cell, so wear can be inspected. Only bytes whose value changes are
// written (and counted), like avr-libc's eeprom_update_block.
type Mem struct {
	mu    sync.Mutex
	data  []byte
	wears []int
}

func NewMem(size int) *Mem {
	m := &Mem{data: make([]byte, size), wears: make([]int, size)}
	for i := range m.data {
		m.data[i] = 0xFF
	}
	return m
}

func (m *Mem) Size() int64 { return int64(len(m.data)) }

func (m *Mem) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(off, len(p), int64(len(m.data))); err != nil {
		return 0, err
	}
	return copy(p, m.data[off:]), nil
}

func (m *Mem) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(off, len(p), int64(len(m.data))); err != nil {
		return 0, err
	}
	for i, b := range p {
		if m.data[off+int64(i)] != b {
			m.data[off+int64(i)] = b
			m.wears[off+int64(i)]++
		}
	}
	return len(p), nil
}

// Wear returns the number of writes cell off has seen.
func (m *Mem) Wear(off int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wears[off]
}

// MaxWear returns the highest write count of any cell.
func (m *Mem) MaxWear() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, w := range m.wears {
		if w > max {
			max = w
		}
	}
	return max
}

func checkRange(off int64, n int, size int64) error {
	if off < 0 || off+int64(n) > size {
		return fmt.Errorf("eeprom: access [%d,%d) outside %d byte device", off, off+int64(n), size)
	}
	return nil
}
