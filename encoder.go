package packetsock

import "io"

// Encoder turns whole packets into framed byte runs on a stream writer.
// It stages exactly one frame at a time in a reused buffer of
// EncodedLen(mtu) bytes, so memory stays bounded no matter how fast packets
// are produced. Not safe for concurrent use; a channel drives its encoder
// from a single write loop.
type Encoder struct {
	w   io.Writer
	mtu int
	buf []byte
}

// NewEncoder creates an encoder writing frames for packets up to mtu bytes.
func NewEncoder(w io.Writer, mtu int) *Encoder {
	return &Encoder{
		w:   w,
		mtu: mtu,
		buf: make([]byte, 0, EncodedLen(mtu)),
	}
}

// Encode frames packet p and writes it to the underlying stream, returning
// once the frame is fully handed to the writer. A packet longer than the
// encoder MTU is rejected with ErrPacketTooLarge before any byte is written.
func (e *Encoder) Encode(p []byte) error {
	if len(p) > e.mtu {
		return ErrPacketTooLarge
	}

	e.buf = AppendFrame(e.buf[:0], p)
	_, err := e.w.Write(e.buf)
	return err
}
