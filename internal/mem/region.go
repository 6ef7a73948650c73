package mem

import (
	"encoding/binary"
	"math"
)

// Region is the byte store backing a window: the simulated target RAM.
// The engine never touches it directly: reads go through an Accessor,
// writes are reserved for the simulated firmware task that plays the role
// of the target mutating its own memory.
//
// Values are little-endian, matching the RISC-V target the window is
// modeled on.
type Region struct {
	win Window
	buf []byte
}

// NewRegion allocates a zeroed region covering win.
func NewRegion(win Window) *Region {
	return &Region{win: win, buf: make([]byte, win.Size())}
}

// Window returns the region's address window.
func (r *Region) Window() Window {
	return r.win
}

// Write stores p at addr, bounds-checked against the window.
func (r *Region) Write(addr uint32, p []byte) error {
	if err := r.win.Check(addr, uint32(len(p)), 1); err != nil {
		return err
	}
	copy(r.buf[addr-r.win.Start:], p)
	return nil
}

// Accessor is the only path that dereferences a Region. Every read
// validates bounds (and alignment, for typed reads) against the window
// first, then returns either the full requested width or an error.
// Never a partial read, and never a view into the backing store.
type Accessor struct {
	r *Region
}

// NewAccessor returns an accessor over r.
func NewAccessor(r *Region) *Accessor {
	return &Accessor{r: r}
}

// Window returns the window this accessor validates against.
func (a *Accessor) Window() Window {
	return a.r.win
}

// Bytes returns a copy of size bytes at addr. No alignment requirement.
func (a *Accessor) Bytes(addr, size uint32) ([]byte, error) {
	return a.read(addr, size, 1)
}

func (a *Accessor) read(addr, size, align uint32) ([]byte, error) {
	if err := a.r.win.Check(addr, size, align); err != nil {
		return nil, err
	}
	off := addr - a.r.win.Start
	out := make([]byte, size)
	copy(out, a.r.buf[off:off+size])
	return out, nil
}

// Typed reads, one per supported tag. Each requires natural alignment.

func (a *Accessor) Uint8(addr uint32) (uint8, error) {
	b, err := a.read(addr, 1, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (a *Accessor) Int8(addr uint32) (int8, error) {
	v, err := a.Uint8(addr)
	return int8(v), err
}

func (a *Accessor) Uint16(addr uint32) (uint16, error) {
	b, err := a.read(addr, 2, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (a *Accessor) Int16(addr uint32) (int16, error) {
	v, err := a.Uint16(addr)
	return int16(v), err
}

func (a *Accessor) Uint32(addr uint32) (uint32, error) {
	b, err := a.read(addr, 4, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (a *Accessor) Int32(addr uint32) (int32, error) {
	v, err := a.Uint32(addr)
	return int32(v), err
}

func (a *Accessor) Float32(addr uint32) (float32, error) {
	v, err := a.Uint32(addr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}
