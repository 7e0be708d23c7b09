package gt911

import (
	"encoding/binary"
	"errors"
)

// Simulator is an in-memory model of the controller register map. It
// implements Bus and stands in for the real chip in tests and in the
// hardware-less dummy mode of the panel binary.
type Simulator struct {
	regs map[uint16]byte

	// Err, when set, fails every transaction with itself.
	Err error
	// LastAddr is the I²C address of the most recent transaction.
	LastAddr uint16
	// StatusClears counts zero writes to the point status register.
	StatusClears int
	// ConfigWrites counts configuration block writes.
	ConfigWrites int
	// FreshWrites counts reload requests via the config fresh flag.
	FreshWrites int
}

// NewSimulator returns a simulator configured like a stock 800x480
// panel module.
func NewSimulator() *Simulator {
	s := &Simulator{regs: make(map[uint16]byte)}
	id := []byte{'9', '1', '1', 0x00, 0x60, 0x10, 0x20, 0x03, 0xe0, 0x01, 0x00}
	for i, b := range id {
		s.regs[regProductID+uint16(i)] = b
	}
	s.SetResolution(800, 480)
	return s
}

// SetResolution sets the resolution fields of the configuration block
// and recomputes its checksum.
func (s *Simulator) SetResolution(w, h int) {
	s.regs[regXOutputMax] = byte(w)
	s.regs[regXOutputMax+1] = byte(w >> 8)
	s.regs[regYOutputMax] = byte(h)
	s.regs[regYOutputMax+1] = byte(h >> 8)
	var sum byte
	for reg := regConfigStart; reg < regConfigChksum; reg++ {
		sum += s.regs[uint16(reg)]
	}
	s.regs[regConfigChksum] = ^sum + 1
}

// Resolution returns the resolution fields of the configuration block.
func (s *Simulator) Resolution() (int, int) {
	w := int(s.regs[regXOutputMax]) | int(s.regs[regXOutputMax+1])<<8
	h := int(s.regs[regYOutputMax]) | int(s.regs[regYOutputMax+1])<<8
	return w, h
}

// ConfigValid reports whether the configuration block sums to zero,
// including its checksum byte.
func (s *Simulator) ConfigValid() bool {
	var sum byte
	for reg := regConfigStart; reg <= regConfigChksum; reg++ {
		sum += s.regs[uint16(reg)]
	}
	return sum == 0
}

// Touch posts a touch frame. The frame stays pending until the driver
// acknowledges the status register.
func (s *Simulator) Touch(points ...TouchPoint) {
	for i, p := range points {
		base := regPointStart + uint16(i)*pointSize
		s.regs[base] = byte(i)
		s.regs[base+1] = byte(p.Pos.X)
		s.regs[base+2] = byte(p.Pos.X >> 8)
		s.regs[base+3] = byte(p.Pos.Y)
		s.regs[base+4] = byte(p.Pos.Y >> 8)
		s.regs[base+5] = byte(p.Size)
		s.regs[base+6] = byte(p.Size >> 8)
		s.regs[base+7] = 0
	}
	s.regs[regPointStatus] = 0x80 | byte(len(points))
}

// Tx implements Bus. The first two written bytes are the big-endian
// register address; remaining bytes are written to consecutive
// registers, otherwise r is filled from consecutive registers.
func (s *Simulator) Tx(addr uint16, w, r []byte) error {
	if s.Err != nil {
		return s.Err
	}
	if len(w) < 2 {
		return errors.New("gt911 sim: missing register address")
	}
	s.LastAddr = addr
	reg := binary.BigEndian.Uint16(w)
	if data := w[2:]; len(data) > 0 {
		if reg == regConfigStart && len(data) > 1 {
			s.ConfigWrites++
		}
		for i, b := range data {
			s.write(reg+uint16(i), b)
		}
		return nil
	}
	for i := range r {
		r[i] = s.regs[reg+uint16(i)]
	}
	return nil
}

func (s *Simulator) write(reg uint16, b byte) {
	switch reg {
	case regPointStatus:
		if b == 0x00 {
			s.StatusClears++
		}
	case regConfigFresh:
		if b == 0x01 {
			s.FreshWrites++
		}
	}
	s.regs[reg] = b
}
