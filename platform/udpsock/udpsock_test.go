package udpsock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopbackIP() uint32 { return 0x7F000001 } // 127.0.0.1

func TestSendRecvRoundTrip(t *testing.T) {
	p := New()

	serverSock, err := p.OpenUDP(loopbackIP(), 0, false)
	require.NoError(t, err)
	defer serverSock.Close()

	clientSock, err := p.OpenUDP(loopbackIP(), 0, false)
	require.NoError(t, err)
	defer clientSock.Close()

	serverPort := localPort(t, serverSock)

	_, err = clientSock.SendTo(loopbackIP(), serverPort, []byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	var n int
	var ok bool
	for i := 0; i < 100 && !ok; i++ {
		n, _, _, ok, err = serverSock.RecvFrom(buf)
		require.NoError(t, err)
		if !ok {
			time.Sleep(time.Millisecond)
		}
	}
	require.True(t, ok)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestRecvFromWouldBlockReturnsFalseNoError(t *testing.T) {
	p := New()
	sock, err := p.OpenUDP(loopbackIP(), 0, false)
	require.NoError(t, err)
	defer sock.Close()

	buf := make([]byte, 16)
	_, _, _, ok, err := sock.RecvFrom(buf)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestClocksAdvance(t *testing.T) {
	p := New()
	first := p.NowMonotonicUs()
	time.Sleep(time.Millisecond)
	second := p.NowMonotonicUs()
	assert.Greater(t, second, first)

	assert.Greater(t, p.NowUnixMs(), uint64(0))
}

// localPort retrieves the ephemeral port a Socket was bound to by asking
// the OS directly, since cciefb.UDPSocket exposes no getsockname method.
func localPort(t *testing.T, s interface{ Close() error }) uint16 {
	t.Helper()
	sock, ok := s.(*Socket)
	require.True(t, ok)
	sa, err := sockGetsockname(sock.fd)
	require.NoError(t, err)
	return sa
}
