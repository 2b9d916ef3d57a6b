// Package storedcal implements wear-leveled storage of a fixed-size record.
//
// Storage cells survive a limited number of writes (about 100K for AVR-class
// EEPROM). The device is divided into slots of one record each, used in
// rotation: slot 0, 1, ... N-1, 0, ... Every slot except the one holding the
// current record stays erased (all bits set), which valid records never are.
//
// An update erases the current slot before writing the next one. Power loss
// between the two leaves the store empty, never holding a half-written
// record in an apparently valid slot.
package storedcal

import (
	"errors"
	"fmt"
	"io"
	"log"
)

// Erased is the value of every byte in an unused slot.
const Erased = 0xFF

// ErrNotFound means every slot is erased: no record has been stored.
var ErrNotFound = errors.New("storedcal: no stored record")

// Device is byte-addressed persistent storage.
type Device interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
}

type Store struct {
	dev      Device
	slotSize int
	slots    int
}

func New(dev Device, slotSize int) (*Store, error) {
	if dev == nil {
		return nil, fmt.Errorf("storedcal: device is nil")
	}
	if slotSize <= 0 {
		return nil, fmt.Errorf("storedcal: invalid slot size %d", slotSize)
	}
	n := int(dev.Size() / int64(slotSize))
	if n < 1 {
		return nil, fmt.Errorf("storedcal: device too small (%d bytes) for a %d byte slot", dev.Size(), slotSize)
	}
	return &Store{dev: dev, slotSize: slotSize, slots: n}, nil
}

// Slots returns the number of slots the device was divided into.
func (s *Store) Slots() int { return s.slots }

func (s *Store) SlotSize() int { return s.slotSize }

func (s *Store) off(slot int) int64 { return int64(slot) * int64(s.slotSize) }

// Get copies the current record into dst (if dst is non-nil) and returns the
// slot holding it. Returns ErrNotFound if nothing is stored.
func (s *Store) Get(dst []byte) (int, error) {
	if dst != nil && len(dst) != s.slotSize {
		return -1, fmt.Errorf("storedcal: buffer is %d bytes, want %d", len(dst), s.slotSize)
	}
	buf := make([]byte, s.slotSize)
	for i := 0; i < s.slots; i++ {
		if _, err := s.dev.ReadAt(buf, s.off(i)); err != nil {
			return -1, fmt.Errorf("storedcal: read slot %d: %w", i, err)
		}
		if !erased(buf) {
			if dst != nil {
				copy(dst, buf)
			}
			return i, nil
		}
	}
	return -1, ErrNotFound
}

// Set stores src as the current record and returns the slot it went to.
func (s *Store) Set(src []byte) (int, error) {
	if len(src) != s.slotSize {
		return -1, fmt.Errorf("storedcal: record is %d bytes, want %d", len(src), s.slotSize)
	}
	if erased(src) {
		return -1, fmt.Errorf("storedcal: record is indistinguishable from an erased slot")
	}

	next := 0
	cur, err := s.Get(nil)
	switch {
	case err == nil:
		blank := make([]byte, s.slotSize)
		for i := range blank {
			blank[i] = Erased
		}
		if _, err := s.dev.WriteAt(blank, s.off(cur)); err != nil {
			return -1, fmt.Errorf("storedcal: erase slot %d: %w", cur, err)
		}
		next = (cur + 1) % s.slots
	case errors.Is(err, ErrNotFound):
	default:
		return -1, err
	}

	if _, err := s.dev.WriteAt(src, s.off(next)); err != nil {
		return -1, fmt.Errorf("storedcal: write slot %d: %w", next, err)
	}
	log.Printf("storedcal: stored record slot=%d/%d", next, s.slots)
	return next, nil
}

func erased(b []byte) bool {
	for _, v := range b {
		if v != Erased {
			return false
		}
	}
	return true
}
