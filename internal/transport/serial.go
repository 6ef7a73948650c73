package transport

import (
	"fmt"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

// rxQueueSize is the input queue depth shared by the pumped transports.
// At 115200 baud it holds roughly a third of a second of traffic, far
// more than accumulates between 10 ms ticks.
const rxQueueSize = 4096

// Serial is a Transport over a real serial port (8N1). A pump goroutine
// owns the blocking port reads and feeds the input queue, so the engine
// never waits on the device.
type Serial struct {
	path string
	port serial.Port
	rx   chan byte
	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex // guards port writes and close state
	closed bool
}

// OpenSerial opens path at baud and starts the read pump.
func OpenSerial(path string, baud int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", path, err)
	}
	// Short timeout so the pump can notice Close between reads.
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s: %w", path, err)
	}

	s := &Serial{
		path: path,
		port: port,
		rx:   make(chan byte, rxQueueSize),
		done: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.pump()

	log.Printf("[transport] opened %s at %d baud", path, baud)
	return s, nil
}

func (s *Serial) pump() {
	defer s.wg.Done()
	buf := make([]byte, 256)
	for {
		select {
		case <-s.done:
			return
		default:
		}
		n, err := s.port.Read(buf)
		if err != nil {
			select {
			case <-s.done:
			default:
				log.Printf("[transport] %s read: %v", s.path, err)
			}
			return
		}
		for i := 0; i < n; i++ {
			select {
			case s.rx <- buf[i]:
			case <-s.done:
				return
			}
		}
	}
}

// TryReadByte returns the next pumped input byte, if any.
func (s *Serial) TryReadByte() (byte, bool) {
	select {
	case b := <-s.rx:
		return b, true
	default:
		return 0, false
	}
}

// Write sends record bytes to the port.
func (s *Serial) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("transport: %s closed", s.path)
	}
	return s.port.Write(p)
}

// Close stops the pump and releases the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	err := s.port.Close()
	s.wg.Wait()
	return err
}
