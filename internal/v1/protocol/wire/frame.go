package wire

import (
	"fmt"

	"github.com/rymc/roomserver/internal/v1/protocol/bytebuf"
)

// SupportedVersions is the set of handshake bytes the server accepts.
var SupportedVersions = map[byte]bool{0x01: true}

// ErrUnsupportedVersion is returned by the handshake check when the client's
// version byte isn't in SupportedVersions — protocol-fatal, close the socket.
type ErrUnsupportedVersion struct{ Version byte }

func (e ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("wire: unsupported protocol version 0x%02x", e.Version)
}

// CheckHandshake validates a single version byte read off a fresh connection.
func CheckHandshake(version byte) error {
	if !SupportedVersions[version] {
		return ErrUnsupportedVersion{Version: version}
	}
	return nil
}

// FrameDecoder pulls length-prefixed frames out of an accumulating buffer.
// Bytes arrive in arbitrary chunks from the socket; Feed appends them and
// TryDecode extracts as many complete frames as are currently available.
type FrameDecoder struct {
	buf *bytebuf.ByteBuf
}

// NewFrameDecoder returns a FrameDecoder with an empty backing buffer.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{buf: bytebuf.New()}
}

// Feed appends newly-read bytes to the decoder's backing buffer.
func (d *FrameDecoder) Feed(b []byte) {
	d.buf.WriteBytes(b)
}

// TryDecode attempts to extract the next complete frame. It returns
// (frame, true, nil) if a full frame was available, (nil, false, nil) if
// more bytes are needed, or a non-nil error if the length VarInt itself is
// malformed (protocol-fatal).
func (d *FrameDecoder) TryDecode() (*bytebuf.ByteBuf, bool, error) {
	d.buf.MarkReaderIndex()
	length, err := bytebuf.ReadVarInt(d.buf)
	if err != nil {
		if err == bytebuf.ErrNeedMoreData {
			d.buf.ResetReaderIndex()
			return nil, false, nil
		}
		return nil, false, err
	}
	body, err := d.buf.ReadBytes(int(length))
	if err != nil {
		d.buf.ResetReaderIndex()
		return nil, false, nil
	}
	frameCopy := make([]byte, len(body))
	copy(frameCopy, body)
	return bytebuf.WrapBytes(frameCopy), true, nil
}

// EncodeFrame produces a new buffer containing [VarInt length][body].
func EncodeFrame(body *bytebuf.ByteBuf) *bytebuf.ByteBuf {
	payload := body.WrittenBytes()
	out := bytebuf.New()
	bytebuf.WriteVarInt(out, int32(len(payload)))
	out.WriteBytes(payload)
	return out
}
