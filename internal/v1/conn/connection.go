// Package conn implements the per-socket concurrency boundary: a serialised
// outbound queue drained by a single writer goroutine, an asynchronous
// reader goroutine, and an idempotent close with bounded drain — the same
// readPump/writePump split the teacher's session package uses for its
// websocket clients, generalised to a raw net.Conn and the VarInt frame
// layer instead of gorilla/websocket + protobuf.
package conn

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rymc/roomserver/internal/v1/protocol/bytebuf"
	"github.com/rymc/roomserver/internal/v1/protocol/wire"
	"go.uber.org/zap"
)

// DefaultHighWaterMark bounds the outbound queue; exceeding it trips
// backpressure and closes the connection rather than growing memory
// unboundedly (§5).
const DefaultHighWaterMark = 256

// DefaultDrainTimeout bounds how long Close waits for the writer to flush
// whatever was already enqueued before it force-closes the socket (§4.E).
const DefaultDrainTimeout = 2 * time.Second

// CloseReason records why a Connection was closed, for logging and for the
// close callback to distinguish a clean disconnect from a fatal one.
type CloseReason string

const (
	CloseReasonClient       CloseReason = "client-initiated"
	CloseReasonCodecError   CloseReason = "codec-error"
	CloseReasonIOError      CloseReason = "transient-io"
	CloseReasonBackpressure CloseReason = "backpressure"
	CloseReasonServer       CloseReason = "server-shutdown"
)

// ReceiveFunc is invoked once per decoded serverbound packet.
type ReceiveFunc func(wire.Packet)

// CloseFunc is invoked exactly once, after the connection is fully closed.
type CloseFunc func(reason CloseReason)

// Connection owns one bidirectional byte stream. It exclusively owns the
// net.Conn; a Room or Handler may hold a non-owning reference to it (§9 —
// RoomUser holds a lookup key plus this reference, never the reverse).
type Connection struct {
	id        string
	nc        net.Conn
	encode    *wire.Registry
	decode    *wire.Registry
	onReceive ReceiveFunc
	onClose   CloseFunc
	log       *zap.Logger
	highWater int
	drainTimer time.Duration

	outbound chan *bytebuf.ByteBuf

	mu     sync.Mutex
	closed bool

	writerDone chan struct{}
}

// Options configures a Connection. HighWaterMark and DrainTimeout default to
// DefaultHighWaterMark/DefaultDrainTimeout when zero.
type Options struct {
	HighWaterMark int
	DrainTimeout  time.Duration
}

// New wraps nc and starts its writer goroutine. encode is the registry used
// by Send to turn outbound packets into bytes; decode is the registry
// ReadLoop uses to turn inbound bytes into packets — the server passes its
// clientbound registry as encode and its serverbound registry as decode,
// since the two id spaces are independent (§6). onReceive is called
// synchronously from the reader goroutine for every decoded packet; onClose
// is called exactly once after the connection is fully torn down.
func New(id string, nc net.Conn, encode, decode *wire.Registry, onReceive ReceiveFunc, onClose CloseFunc, opts Options, log *zap.Logger) *Connection {
	if opts.HighWaterMark <= 0 {
		opts.HighWaterMark = DefaultHighWaterMark
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	c := &Connection{
		id:         id,
		nc:         nc,
		encode:     encode,
		decode:     decode,
		onReceive:  onReceive,
		onClose:    onClose,
		log:        log.With(zap.String("connection_id", id)),
		highWater:  opts.HighWaterMark,
		drainTimer: opts.DrainTimeout,
		outbound:   make(chan *bytebuf.ByteBuf, opts.HighWaterMark),
		writerDone: make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// ID returns the connection's stable identifier (used in logs and metrics).
func (c *Connection) ID() string { return c.id }

// RemoteAddr returns the peer address, or "" if there is no underlying socket.
func (c *Connection) RemoteAddr() string {
	if c.nc == nil {
		return ""
	}
	return c.nc.RemoteAddr().String()
}

// Send enqueues p for delivery. It never blocks on the network; if the
// outbound queue is already at its high-water mark, the connection is
// closed for backpressure instead of growing the queue further.
func (c *Connection) Send(p wire.Packet) {
	body := bytebuf.New()
	if err := c.encode.Encode(body, p); err != nil {
		c.log.Error("failed to encode outbound packet", zap.Error(err))
		return
	}
	frame := wire.EncodeFrame(body)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.outbound <- frame:
	default:
		c.log.Warn("outbound queue exceeded high-water mark, closing connection")
		go c.Close(CloseReasonBackpressure)
	}
}

// writeLoop is the single writer goroutine; it is the only goroutine that
// ever calls Write on the socket, so sends from many callers never
// interleave on the wire (§4.E invariant).
func (c *Connection) writeLoop() {
	defer close(c.writerDone)
	for frame := range c.outbound {
		if _, err := c.nc.Write(frame.WrittenBytes()); err != nil {
			c.log.Debug("write error, closing connection", zap.Error(err))
			c.Close(CloseReasonIOError)
			return
		}
	}
}

// ReadLoop runs the frame-decode loop against the socket. It is started by
// the caller (typically the server's accept loop) rather than by New, so
// the handler's onReceive/onClose callbacks can be wired in first.
func (c *Connection) ReadLoop() {
	decoder := wire.NewFrameDecoder()
	readBuf := make([]byte, 4096)
	for {
		n, err := c.nc.Read(readBuf)
		if n > 0 {
			decoder.Feed(readBuf[:n])
			for {
				frame, ok, decErr := decoder.TryDecode()
				if decErr != nil {
					c.log.Debug("malformed frame length, closing connection", zap.Error(decErr))
					c.Close(CloseReasonCodecError)
					return
				}
				if !ok {
					break
				}
				pkt, decErr := c.decode.Decode(frame)
				if decErr != nil {
					c.log.Debug("codec error decoding packet, closing connection", zap.Error(decErr))
					c.Close(CloseReasonCodecError)
					return
				}
				if c.onReceive != nil {
					c.onReceive(pkt)
				}
			}
		}
		if err != nil {
			c.Close(CloseReasonIOError)
			return
		}
	}
}

// Close is idempotent: it stops the writer, drains best-effort within
// DrainTimeout, closes the socket, and invokes onClose exactly once.
func (c *Connection) Close(reason CloseReason) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.outbound)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.drainTimer)
	defer cancel()
	select {
	case <-c.writerDone:
	case <-ctx.Done():
		c.log.Warn("drain timeout exceeded, forcing close")
	}

	if err := c.nc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.log.Debug("error closing socket", zap.Error(err))
	}

	if c.onClose != nil {
		c.onClose(reason)
	}
}

// IsClosed reports whether Close has already run.
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
