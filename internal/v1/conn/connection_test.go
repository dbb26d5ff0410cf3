package conn_test

import (
	"net"
	"testing"
	"time"

	"github.com/rymc/roomserver/internal/v1/conn"
	"github.com/rymc/roomserver/internal/v1/protocol/bytebuf"
	"github.com/rymc/roomserver/internal/v1/protocol/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConnectionSendOrdersBytesOnWire(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	clientBound := wire.NewClientBoundRegistry()
	c := conn.New("c1", server, clientBound, nil, nil, nil, conn.Options{}, zap.NewNop())
	defer c.Close(conn.CloseReasonServer)

	go func() {
		c.Send(wire.CreateRoomSuccess())
		c.Send(wire.LeaveRoomSuccess())
	}()

	decoder := wire.NewFrameDecoder()
	readBuf := make([]byte, 64)
	var packets []wire.Packet
	deadline := time.Now().Add(2 * time.Second)
	for len(packets) < 2 && time.Now().Before(deadline) {
		client.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := client.Read(readBuf)
		if err != nil {
			continue
		}
		decoder.Feed(readBuf[:n])
		for {
			frame, ok, err := decoder.TryDecode()
			require.NoError(t, err)
			if !ok {
				break
			}
			pkt, err := clientBound.Decode(frame)
			require.NoError(t, err)
			packets = append(packets, pkt)
		}
	}

	require.Len(t, packets, 2)
	assert.Equal(t, wire.CreateRoomSuccess(), packets[0])
	assert.Equal(t, wire.LeaveRoomSuccess(), packets[1])
}

func TestConnectionCloseIsIdempotentAndInvokesCallbackOnce(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	calls := 0
	serverBound := wire.NewServerBoundRegistry()
	c := conn.New("c1", server, nil, serverBound, nil, func(conn.CloseReason) { calls++ }, conn.Options{}, zap.NewNop())

	c.Close(conn.CloseReasonClient)
	c.Close(conn.CloseReasonClient)
	c.Close(conn.CloseReasonClient)

	assert.Equal(t, 1, calls)
	assert.True(t, c.IsClosed())
}

func TestConnectionReadLoopDecodesAndClosesOnEOF(t *testing.T) {
	server, client := net.Pipe()

	serverBound := wire.NewServerBoundRegistry()
	received := make(chan wire.Packet, 1)
	closed := make(chan conn.CloseReason, 1)
	c := conn.New("c1", server, nil, serverBound, func(p wire.Packet) { received <- p }, func(r conn.CloseReason) { closed <- r }, conn.Options{}, zap.NewNop())

	go c.ReadLoop()

	body := wire.ServerBoundCreateRoom{RoomID: "R1"}
	buf := bytebuf.New()
	require.NoError(t, serverBound.Encode(buf, body))
	frame := wire.EncodeFrame(buf)
	_, err := client.Write(frame.WrittenBytes())
	require.NoError(t, err)

	select {
	case pkt := <-received:
		assert.Equal(t, body, pkt)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decoded packet")
	}

	client.Close()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close callback after EOF")
	}
}
