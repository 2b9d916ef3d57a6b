package eeprom

import (
	"fmt"
	"time"

	"compass-ng/internal/i2c"
)

var sleep = time.Sleep

// AT24 drives a small 24Cxx serial EEPROM (24C01..24C16) over I2C.
//
// These parts take a one-byte word address; larger ones put address bits
// 8..10 into the low bits of the device address. Writes must not cross a
// page boundary and are followed by an internal write cycle of up to 5ms,
// during which the part does not acknowledge.
type AT24 struct {
	open     func(addr uint16) txer
	base     uint16
	size     int64
	pageSize int
}

type txer interface {
	Write(p []byte) error
	WriteRead(w, r []byte) error
}

const (
	at24DefaultAddr = 0x50
	at24WriteCycle  = 5 * time.Millisecond
)

func AT24DefaultAddress() uint16 { return at24DefaultAddr }

func NewAT24(bus *i2c.Bus, addr uint16, size int64, pageSize int) (*AT24, error) {
	if bus == nil {
		return nil, fmt.Errorf("eeprom: bus is nil")
	}
	return newAT24(func(a uint16) txer { return bus.Dev(a) }, addr, size, pageSize)
}

func newAT24(open func(uint16) txer, addr uint16, size int64, pageSize int) (*AT24, error) {
	if addr == 0 {
		addr = at24DefaultAddr
	}
	if size <= 0 || size > 2048 {
		return nil, fmt.Errorf("eeprom: at24 size %d not supported (1..2048)", size)
	}
	if pageSize <= 0 {
		pageSize = 16
	}
	return &AT24{open: open, base: addr, size: size, pageSize: pageSize}, nil
}

func (e *AT24) Size() int64 { return e.size }

func (e *AT24) dev(off int64) (txer, byte) {
	return e.open(e.base | uint16((off>>8)&0x07)), byte(off)
}

func (e *AT24) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), e.size); err != nil {
		return 0, err
	}
	done := 0
	for done < len(p) {
		// Sequential reads roll over within a 256 byte block.
		cur := off + int64(done)
		n := len(p) - done
		if rem := 256 - int(cur&0xFF); n > rem {
			n = rem
		}
		d, word := e.dev(cur)
		if err := d.WriteRead([]byte{word}, p[done:done+n]); err != nil {
			return done, fmt.Errorf("eeprom: read @%d: %w", cur, err)
		}
		done += n
	}
	return done, nil
}

// WriteAt writes page by page, skipping pages that already hold the data.
func (e *AT24) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), e.size); err != nil {
		return 0, err
	}
	done := 0
	for done < len(p) {
		cur := off + int64(done)
		n := len(p) - done
		if rem := e.pageSize - int(cur%int64(e.pageSize)); n > rem {
			n = rem
		}
		chunk := p[done : done+n]

		have := make([]byte, n)
		if _, err := e.ReadAt(have, cur); err == nil && string(have) == string(chunk) {
			done += n
			continue
		}

		d, word := e.dev(cur)
		buf := append([]byte{word}, chunk...)
		if err := d.Write(buf); err != nil {
			return done, fmt.Errorf("eeprom: write @%d: %w", cur, err)
		}
		sleep(at24WriteCycle)
		done += n
	}
	return done, nil
}
