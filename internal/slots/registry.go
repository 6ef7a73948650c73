package slots

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/mem"
)

// Slot is a named, typed pointer into the target region. The target
// address may be redirected by an external actor between any two reads
// (the debugger rewriting a pointer), so it is stored atomically and is
// re-validated on every single read. A slot never assumes its target
// stayed valid.
type Slot struct {
	name string
	kind Kind
	addr atomic.Uint32
}

// Name returns the slot's static label.
func (s *Slot) Name() string { return s.name }

// Kind returns the slot's type tag.
func (s *Slot) Kind() Kind { return s.kind }

// Addr returns the current target address.
func (s *Slot) Addr() uint32 { return s.addr.Load() }

// Redirect points the slot at a new target address. Takes effect on the
// next read; no validation happens here, only at read time.
func (s *Slot) Redirect(addr uint32) { s.addr.Store(addr) }

// Value is one typed sample read from a slot.
type Value struct {
	kind Kind
	i    int64   // integer kinds: sign-extended for I8/I16/I32
	f    float32 // F32 only
}

// Kind returns the tag the value was read as.
func (v Value) Kind() Kind { return v.kind }

// Int returns the integer value. Zero for F32.
func (v Value) Int() int64 { return v.i }

// Float returns the F32 value. Zero for integer kinds.
func (v Value) Float() float32 { return v.f }

func (v Value) String() string {
	if v.kind == F32 {
		return strconv.FormatFloat(float64(v.f), 'g', -1, 32)
	}
	return strconv.FormatInt(v.i, 10)
}

// Registry is the fixed collection of slots, kept in declaration order.
// Slots are declared once at startup and live for the process lifetime;
// only their target addresses change afterwards.
type Registry struct {
	acc    *mem.Accessor
	slots  []*Slot
	byName map[string]*Slot
}

// NewRegistry returns an empty registry reading through acc.
func NewRegistry(acc *mem.Accessor) *Registry {
	return &Registry{
		acc:    acc,
		byName: make(map[string]*Slot),
	}
}

// Declare registers a named slot targeting addr. Names are unique.
func (r *Registry) Declare(name string, kind Kind, addr uint32) (*Slot, error) {
	if _, ok := r.byName[name]; ok {
		return nil, fmt.Errorf("slots: duplicate slot %q", name)
	}
	s := &Slot{name: name, kind: kind}
	s.addr.Store(addr)
	r.slots = append(r.slots, s)
	r.byName[name] = s
	return s, nil
}

// All returns the slots in declaration order. The slice is stable after
// startup; callers must not mutate it.
func (r *Registry) All() []*Slot { return r.slots }

// Lookup finds a slot by name.
func (r *Registry) Lookup(name string) (*Slot, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Len returns the number of declared slots.
func (r *Registry) Len() int { return len(r.slots) }

// Read samples the slot's current target through the validated accessor.
// The address is reloaded and re-checked on every call; validation
// results are never cached across reads. Either the full element width is
// read or nothing is.
func (r *Registry) Read(s *Slot) (Value, error) {
	addr := s.Addr()
	switch s.kind {
	case I8:
		v, err := r.acc.Int8(addr)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: I8, i: int64(v)}, nil
	case U8:
		v, err := r.acc.Uint8(addr)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: U8, i: int64(v)}, nil
	case I16:
		v, err := r.acc.Int16(addr)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: I16, i: int64(v)}, nil
	case U16:
		v, err := r.acc.Uint16(addr)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: U16, i: int64(v)}, nil
	case I32:
		v, err := r.acc.Int32(addr)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: I32, i: int64(v)}, nil
	case U32:
		v, err := r.acc.Uint32(addr)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: U32, i: int64(v)}, nil
	case F32:
		v, err := r.acc.Float32(addr)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: F32, f: v}, nil
	default:
		return Value{}, fmt.Errorf("slots: unknown kind %d", s.kind)
	}
}
