package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect polls TryReadByte until n bytes arrived or the deadline hit.
func collect(tr Transport, n int, within time.Duration) string {
	var got []byte
	deadline := time.Now().Add(within)
	for len(got) < n && time.Now().Before(deadline) {
		b, ok := tr.TryReadByte()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		got = append(got, b)
	}
	return string(got)
}

func TestTCPRoundTrip(t *testing.T) {
	tr, err := ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer tr.Close()

	peer, err := net.Dial("tcp", tr.Addr().String())
	require.NoError(t, err)
	defer peer.Close()

	_, err = peer.Write([]byte("PING\n"))
	require.NoError(t, err)
	assert.Equal(t, "PING\n", collect(tr, 5, 2*time.Second))

	_, err = tr.Write([]byte("PONG\n"))
	require.NoError(t, err)

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 5)
	got := 0
	for got < len(buf) {
		n, err := peer.Read(buf[got:])
		require.NoError(t, err)
		got += n
	}
	assert.Equal(t, "PONG\n", string(buf))
}

func TestTCPWriteWithoutPeer(t *testing.T) {
	tr, err := ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer tr.Close()

	// Dropped, like a serial line with nothing attached.
	n, err := tr.Write([]byte("HEARTBEAT|ts=0|active=0\n"))
	assert.NoError(t, err)
	assert.Equal(t, 24, n)
}

func TestTCPNewestPeerWins(t *testing.T) {
	tr, err := ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer tr.Close()

	first, err := net.Dial("tcp", tr.Addr().String())
	require.NoError(t, err)
	defer first.Close()
	_, err = first.Write([]byte("A"))
	require.NoError(t, err)
	assert.Equal(t, "A", collect(tr, 1, 2*time.Second))

	second, err := net.Dial("tcp", tr.Addr().String())
	require.NoError(t, err)
	defer second.Close()

	// The replaced peer is closed by the daemon.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = first.Read(make([]byte, 1))
	require.Error(t, err)

	// Records now reach only the new peer.
	_, err = tr.Write([]byte("X\n"))
	require.NoError(t, err)
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2)
	got := 0
	for got < len(buf) {
		n, err := second.Read(buf[got:])
		require.NoError(t, err)
		got += n
	}
	assert.Equal(t, "X\n", string(buf))

	_, err = second.Write([]byte("B"))
	require.NoError(t, err)
	assert.Equal(t, "B", collect(tr, 1, 2*time.Second))
}

func TestTCPCloseIdempotent(t *testing.T) {
	tr, err := ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}
