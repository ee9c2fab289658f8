package packetsock

import (
	"bufio"
	"io"
)

// minReadBuffer keeps the decoder's stream buffer useful for tiny MTUs.
const minReadBuffer = 512

// Decoder reassembles whole packets from an arbitrarily fragmented byte
// stream. Reads resume exactly where the previous one left off, so a frame
// split across any number of transport reads decodes identically to one
// delivered in a single read. Not safe for concurrent use.
type Decoder struct {
	r   *bufio.Reader
	mtu int
	hdr [HeaderLen]byte
}

// NewDecoder creates a decoder delivering packets up to mtu bytes.
func NewDecoder(r io.Reader, mtu int) *Decoder {
	size := EncodedLen(mtu)
	if size < minReadBuffer {
		size = minReadBuffer
	}

	return &Decoder{
		r:   bufio.NewReaderSize(r, size),
		mtu: mtu,
	}
}

// Decode reads the next frame and returns its payload as a whole packet.
//
// A declared length above MaxPayload returns ErrFrameTooLarge and a length
// above the decoder MTU returns ErrPacketTooLarge; both are permanent, the
// stream position is past recovery. End of stream between frames returns
// io.EOF; end of stream inside a frame returns io.ErrUnexpectedEOF.
func (d *Decoder) Decode() ([]byte, error) {
	if _, err := io.ReadFull(d.r, d.hdr[:]); err != nil {
		return nil, err
	}

	n := parseHeader(d.hdr[:])
	if n > MaxPayload {
		return nil, ErrFrameTooLarge
	}
	if n > d.mtu {
		return nil, ErrPacketTooLarge
	}

	p := make([]byte, n)
	if _, err := io.ReadFull(d.r, p); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return p, nil
}
