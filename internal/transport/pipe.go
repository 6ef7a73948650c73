package transport

import (
	"io"
	"strings"
	"sync"
)

// Pipe is an in-memory Transport for tests and embedding. Peer input is
// queued with Send; engine output accumulates until Drain collects it.
type Pipe struct {
	mu     sync.Mutex
	in     []byte
	out    []byte
	closed bool
}

// NewPipe returns an empty pipe.
func NewPipe() *Pipe {
	return &Pipe{}
}

// Send queues peer bytes for the engine to read.
func (p *Pipe) Send(s string) {
	p.mu.Lock()
	p.in = append(p.in, s...)
	p.mu.Unlock()
}

// TryReadByte returns the next queued input byte, if any.
func (p *Pipe) TryReadByte() (byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.in) == 0 {
		return 0, false
	}
	b := p.in[0]
	p.in = p.in[1:]
	return b, true
}

// Write appends engine output to the drain buffer.
func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.out = append(p.out, b...)
	return len(b), nil
}

// Drain returns everything the engine wrote since the last call.
func (p *Pipe) Drain() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := string(p.out)
	p.out = p.out[:0]
	return out
}

// Lines drains the output and splits it into lines, terminators
// stripped. Nil when nothing was written.
func (p *Pipe) Lines() []string {
	out := p.Drain()
	if out == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(out, "\n"), "\n")
}

// Close marks the pipe closed; later writes fail.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
