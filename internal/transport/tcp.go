package transport

import (
	"fmt"
	"log"
	"net"
	"sync"
)

// TCP is a Transport backed by a listening socket. One peer speaks at a
// time; a new connection replaces the current one, so a host console
// can reconnect after a crash without restarting the daemon. With no
// peer connected, writes are dropped the way a serial line with nothing
// attached would drop them.
type TCP struct {
	ln   net.Listener
	rx   chan byte
	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex
	conn   net.Conn // current peer, nil when absent
	closed bool
}

// ListenTCP starts listening on addr and accepting peers.
func ListenTCP(addr string) (*TCP, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	t := &TCP{
		ln:   ln,
		rx:   make(chan byte, rxQueueSize),
		done: make(chan struct{}),
	}
	t.wg.Add(1)
	go t.acceptLoop()

	log.Printf("[transport] listening on %s", ln.Addr())
	return t, nil
}

// Addr returns the bound listener address.
func (t *TCP) Addr() net.Addr {
	return t.ln.Addr()
}

func (t *TCP) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.ln.Accept()
		if err != nil {
			select {
			case <-t.done:
			default:
				log.Printf("[transport] accept: %v", err)
			}
			return
		}

		t.mu.Lock()
		if t.conn != nil {
			log.Printf("[transport] peer %s replaces %s", conn.RemoteAddr(), t.conn.RemoteAddr())
			t.conn.Close()
		} else {
			log.Printf("[transport] peer connected: %s", conn.RemoteAddr())
		}
		t.conn = conn
		t.mu.Unlock()

		t.wg.Add(1)
		go t.pump(conn)
	}
}

func (t *TCP) pump(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			select {
			case t.rx <- buf[i]:
			case <-t.done:
				return
			}
		}
		if err != nil {
			t.mu.Lock()
			current := t.conn == conn
			if current {
				t.conn = nil
			}
			t.mu.Unlock()
			if current {
				select {
				case <-t.done:
				default:
					log.Printf("[transport] peer gone: %v", err)
				}
			}
			return
		}
	}
}

// TryReadByte returns the next pumped input byte, if any.
func (t *TCP) TryReadByte() (byte, bool) {
	select {
	case b := <-t.rx:
		return b, true
	default:
		return 0, false
	}
}

// Write sends record bytes to the current peer. Peer failures clear the
// connection and drop the bytes; they are never surfaced to the engine.
func (t *TCP) Write(p []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return len(p), nil
	}
	if _, err := conn.Write(p); err != nil {
		log.Printf("[transport] write to %s: %v", conn.RemoteAddr(), err)
		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
		}
		t.mu.Unlock()
		conn.Close()
	}
	return len(p), nil
}

// Close stops accepting, drops the peer, and waits for the pumps.
func (t *TCP) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	close(t.done)
	if conn != nil {
		conn.Close()
	}
	err := t.ln.Close()
	t.wg.Wait()
	return err
}
