package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/engine"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/mem"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/slots"
)

func testMonitor(t *testing.T) (*Monitor, *slots.Registry, *httptest.Server) {
	t.Helper()
	acc := mem.NewAccessor(mem.NewRegion(mem.DefaultWindow()))
	reg := slots.NewRegistry(acc)
	_, err := reg.Declare("counter", slots.U32, 0x40800000)
	require.NoError(t, err)
	_, err = reg.Declare("temp_c", slots.F32, 0x40800020)
	require.NoError(t, err)

	m := New(":0", reg, nil)
	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)
	return m, reg, srv
}

func TestStatusEndpoint(t *testing.T) {
	m, _, srv := testMonitor(t)
	m.PushStatus(engine.Status{
		UptimeMS:      5000,
		ActiveStreams: 2,
		Records:       120,
		DataRecords:   80,
		ErrorRecords:  3,
		Commands:      7,
		Overflows:     1,
	})

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var st engine.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, uint64(5000), st.UptimeMS)
	assert.Equal(t, 2, st.ActiveStreams)
	assert.Equal(t, uint64(80), st.DataRecords)
	assert.Equal(t, uint64(1), st.Overflows)
}

func TestSlotsEndpoint(t *testing.T) {
	_, _, srv := testMonitor(t)

	resp, err := http.Get(srv.URL + "/api/slots")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var infos []SlotInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	assert.Equal(t, []SlotInfo{
		{Name: "counter", Kind: "u32", Addr: "0x40800000"},
		{Name: "temp_c", Kind: "f32", Addr: "0x40800020"},
	}, infos)
}

func TestRedirectHex(t *testing.T) {
	_, reg, srv := testMonitor(t)

	resp, err := http.Post(srv.URL+"/api/slots/redirect", "application/json",
		strings.NewReader(`{"name":"temp_c","addr":"0x50000000"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	s, ok := reg.Lookup("temp_c")
	require.True(t, ok)
	assert.Equal(t, uint32(0x50000000), s.Addr())
}

func TestRedirectDecimal(t *testing.T) {
	_, reg, srv := testMonitor(t)

	resp, err := http.Post(srv.URL+"/api/slots/redirect", "application/json",
		strings.NewReader(`{"name":"counter","addr":"1082130464"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	s, ok := reg.Lookup("counter")
	require.True(t, ok)
	assert.Equal(t, uint32(0x40800020), s.Addr())
}

func TestRedirectErrors(t *testing.T) {
	_, _, srv := testMonitor(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"unknown slot", `{"name":"ghost","addr":"0x40800000"}`, 404},
		{"bad addr", `{"name":"counter","addr":"zz"}`, 400},
		{"too wide", `{"name":"counter","addr":"0x140800000"}`, 400},
		{"bad json", `{nope`, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/slots/redirect", "application/json",
				strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}

	// Redirect is POST-only.
	resp, err := http.Get(srv.URL + "/api/slots/redirect")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 405, resp.StatusCode)
}

func TestWebSocketReceivesPublishedRecords(t *testing.T) {
	m, _, srv := testMonitor(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool { return m.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	m.Publish(110, "DATA|addr=0x40800000|hex=0b000000")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	assert.Equal(t, uint64(110), f.TS)
	assert.Equal(t, "DATA|addr=0x40800000|hex=0b000000", f.Record)
}

func TestPublishWithoutClients(t *testing.T) {
	m, _, _ := testMonitor(t)
	// No clients connected; Publish must not block or panic.
	m.Publish(0, "HEARTBEAT|ts=0|active=0")
	assert.Equal(t, 0, m.ClientCount())
}
