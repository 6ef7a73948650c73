package mem

import "fmt"

// Window is the contiguous valid-memory range `[Start, End)` outside which
// no access is permitted. It is configured once at startup and never
// changes for the lifetime of the engine.
type Window struct {
	Start uint32 `yaml:"start" json:"start"`
	End   uint32 `yaml:"end" json:"end"`
}

const (
	// ESP32-C6 SRAM: 512 KB starting at 0x40800000. This is the region the
	// original target exposed and the default window for the simulated one.
	sramStart = 0x40800000
	sramEnd   = 0x40880000
)

// DefaultWindow returns the ESP32-C6 SRAM window.
func DefaultWindow() Window {
	return Window{Start: sramStart, End: sramEnd}
}

// Size returns the window length in bytes.
func (w Window) Size() uint32 {
	return w.End - w.Start
}

// Contains reports whether addr lies inside the window.
func (w Window) Contains(addr uint32) bool {
	return addr >= w.Start && addr < w.End
}

// Check decides whether an access of size bytes at addr with the given
// alignment is admissible. align must be a power of two (1, 2, or 4);
// align <= 1 skips the alignment check.
//
// All bounds checks run before the alignment check, so an address that is
// both out of range and misaligned reports OutOfBoundsError. The tail
// check is computed in 64 bits: an address near the top of the 32-bit
// range cannot wrap and falsely pass.
func (w Window) Check(addr, size, align uint32) error {
	if addr < w.Start || addr >= w.End {
		return &OutOfBoundsError{Addr: uint64(addr)}
	}
	if uint64(addr)+uint64(size) > uint64(w.End) {
		return &OutOfBoundsError{Addr: uint64(addr) + uint64(size)}
	}
	if align > 1 && addr%align != 0 {
		return &MisalignedError{Addr: addr, Align: align}
	}
	return nil
}

// OutOfBoundsError reports an access outside the window. Addr is the
// offending address: the requested address itself when it lies before or
// past the window, or one past the last requested byte when the tail
// crosses the window end. Held as 64 bits so a tail sum past the 32-bit
// range is reported faithfully.
type OutOfBoundsError struct {
	Addr uint64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("mem: address 0x%08x out of bounds", e.Addr)
}

// MisalignedError reports an in-bounds address that does not satisfy the
// required alignment.
type MisalignedError struct {
	Addr  uint32
	Align uint32
}

func (e *MisalignedError) Error() string {
	return fmt.Sprintf("mem: address 0x%08x not aligned to %d", e.Addr, e.Align)
}
