package streams

import "errors"

// MaxStreams is the fixed table capacity. Process-wide, never negotiated
// at runtime.
const MaxStreams = 16

var (
	// ErrCapacity is returned by Add when no free entry exists.
	ErrCapacity = errors.New("streams: max streams reached")
	// ErrNotFound is returned by Remove when no enabled entry matches.
	ErrNotFound = errors.New("streams: stream not found")
)

// Entry is one stream subscription: sample Size bytes at Addr, RateHz
// times per second. A zero Entry is the empty state.
type Entry struct {
	Addr       uint32
	Size       uint32
	RateHz     uint32
	LastSample uint64 // tick time (ms) of the most recent sample
	Enabled    bool
}

// IntervalMS returns the implied sampling interval. Integer division:
// rates that do not evenly divide 1000 truncate. Zero for RateHz==0.
func (e Entry) IntervalMS() uint64 {
	if e.RateHz == 0 {
		return 0
	}
	return 1000 / uint64(e.RateHz)
}

// Table is the fixed-capacity stream list. It owns all entries; the only
// transitions are empty→enabled on Add and enabled→empty on Remove.
// Iteration and allocation order is lowest index first, which is an
// observable contract of the wire protocol.
type Table struct {
	entries [MaxStreams]Entry
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Add registers a stream in the first empty entry, in index order, with
// its sample baseline set to now. The address and size are not validated
// here; validation happens on every sample, so a bad stream registers OK
// and then reports errors at its own rate. On ErrCapacity the table is
// unchanged.
func (t *Table) Add(addr, size, rate uint32, now uint64) error {
	for i := range t.entries {
		if !t.entries[i].Enabled {
			t.entries[i] = Entry{
				Addr:       addr,
				Size:       size,
				RateHz:     rate,
				LastSample: now,
				Enabled:    true,
			}
			return nil
		}
	}
	return ErrCapacity
}

// Remove disables the first enabled entry whose address matches exactly.
// On ErrNotFound the table is unchanged; removing an already-removed
// address is an ordinary error, never a crash.
func (t *Table) Remove(addr uint32) error {
	for i := range t.entries {
		if t.entries[i].Enabled && t.entries[i].Addr == addr {
			t.entries[i] = Entry{}
			return nil
		}
	}
	return ErrNotFound
}

// Due reports whether entry i must sample at now. When true it rebases
// LastSample to now and returns a copy of the entry: a stream that missed
// several intervals while the loop was busy samples once and rebases its
// window to now, never emitting compensating bursts. Disabled entries
// and entries with RateHz==0 are never due.
func (t *Table) Due(i int, now uint64) (Entry, bool) {
	e := &t.entries[i]
	if !e.Enabled || e.RateHz == 0 {
		return Entry{}, false
	}
	if now-e.LastSample < e.IntervalMS() {
		return Entry{}, false
	}
	e.LastSample = now
	return *e, true
}

// Enabled returns copies of the enabled entries in index order.
func (t *Table) Enabled() []Entry {
	out := make([]Entry, 0, MaxStreams)
	for i := range t.entries {
		if t.entries[i].Enabled {
			out = append(out, t.entries[i])
		}
	}
	return out
}

// Active returns the number of enabled entries.
func (t *Table) Active() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].Enabled {
			n++
		}
	}
	return n
}
