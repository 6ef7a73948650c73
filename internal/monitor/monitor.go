package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/engine"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/slots"
)

// Monitor serves the web observer: a WebSocket feed of every emitted
// record plus JSON endpoints for engine status, slot listing, and slot
// redirection. It observes the engine through a record tap and a pushed
// status snapshot; the only state it writes back is the atomic slot
// address on redirect.
type Monitor struct {
	listenAddr string
	reg        *slots.Registry
	webFS      fs.FS

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	statusMu sync.RWMutex
	status   engine.Status
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients, one per
// emitted wire record.
type Frame struct {
	TS     uint64 `json:"ts"`
	Record string `json:"record"`
}

// SlotInfo describes one slot for the API.
type SlotInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Addr string `json:"addr"`
}

// New creates a Monitor over the given registry. webFS serves the
// embedded viewer page and may be nil.
func New(listenAddr string, reg *slots.Registry, webFS fs.FS) *Monitor {
	return &Monitor{
		listenAddr: listenAddr,
		reg:        reg,
		webFS:      webFS,
		clients:    make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish forwards one emitted record to every connected client. It is
// the engine tap: it runs on the engine goroutine and never blocks, so
// slow clients just miss frames.
func (m *Monitor) Publish(nowMS uint64, record string) {
	data, err := json.Marshal(Frame{TS: nowMS, Record: record})
	if err != nil {
		return
	}
	m.broadcast(data)
}

// PushStatus stores the latest engine snapshot for /api/status.
func (m *Monitor) PushStatus(st engine.Status) {
	m.statusMu.Lock()
	m.status = st
	m.statusMu.Unlock()
}

// ClientCount returns the number of connected WebSocket clients.
func (m *Monitor) ClientCount() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

// Handler builds the HTTP routing surface. Run serves it; tests mount
// it directly.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	if m.webFS != nil {
		mux.Handle("/", http.FileServer(http.FS(m.webFS)))
	}
	mux.HandleFunc("/ws", m.handleWS)
	mux.HandleFunc("/api/status", m.handleStatus)
	mux.HandleFunc("/api/slots", m.handleSlots)
	mux.HandleFunc("/api/slots/redirect", m.handleRedirect)
	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    m.listenAddr,
		Handler: m.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[monitor] listening on %s", m.listenAddr)
	return srv.ListenAndServe()
}

func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[monitor] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	m.clientsMu.Lock()
	m.clients[client] = struct{}{}
	n := len(m.clients)
	m.clientsMu.Unlock()
	log.Printf("[monitor] client connected (%d total)", n)

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (keep-alive; any read error drops the client)
	go func() {
		defer func() {
			m.clientsMu.Lock()
			delete(m.clients, client)
			n := len(m.clients)
			m.clientsMu.Unlock()
			close(client.send)
			log.Printf("[monitor] client disconnected (%d total)", n)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (m *Monitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", 405)
		return
	}
	m.statusMu.RLock()
	st := m.status
	m.statusMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

func (m *Monitor) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", 405)
		return
	}
	all := m.reg.All()
	infos := make([]SlotInfo, 0, len(all))
	for _, s := range all {
		infos = append(infos, SlotInfo{
			Name: s.Name(),
			Kind: s.Kind().String(),
			Addr: fmt.Sprintf("0x%08x", s.Addr()),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}

// handleRedirect repoints a slot at a new target address. The change is
// atomic and picked up by the next slot report read.
func (m *Monitor) handleRedirect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", 400)
		return
	}
	var req struct {
		Name string `json:"name"`
		Addr string `json:"addr"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad request", 400)
		return
	}
	slot, ok := m.reg.Lookup(req.Name)
	if !ok {
		http.Error(w, "unknown slot", 404)
		return
	}
	addr, err := parseAddr(req.Addr)
	if err != nil {
		http.Error(w, "bad addr", 400)
		return
	}

	slot.Redirect(addr)
	log.Printf("[monitor] slot %s redirected to 0x%08x", req.Name, addr)

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (m *Monitor) broadcast(data []byte) {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()

	for client := range m.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

// parseAddr accepts the same address forms as the wire protocol,
// 0x-prefixed hex or decimal.
func parseAddr(s string) (uint32, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		return uint32(v), err
	}
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}
