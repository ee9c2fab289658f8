package packetsock

import "encoding/binary"

// Wire format: every packet is sent as a little-endian 16-bit payload
// length followed by exactly that many payload bytes. There is no trailer
// and no checksum; integrity is the transport's responsibility.
const (
	// HeaderLen is the size of the frame length header in bytes.
	HeaderLen = 2

	// MaxPayload is the protocol-wide ceiling on a frame's payload length,
	// independent of any channel's MTU. A whole frame (header plus payload)
	// fits a 16-bit length budget, so header values above MaxPayload are
	// representable on the wire but invalid.
	MaxPayload = 0xFFFF - HeaderLen
)

// EncodedLen returns the wire size of a frame carrying n payload bytes.
func EncodedLen(n int) int {
	return HeaderLen + n
}

// AppendFrame appends the framed representation of packet p to dst and
// returns the extended slice. The caller must ensure len(p) <= MaxPayload.
func AppendFrame(dst []byte, p []byte) []byte {
	var hdr [HeaderLen]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(p)))
	dst = append(dst, hdr[:]...)
	return append(dst, p...)
}

// parseHeader extracts the declared payload length from a frame header.
func parseHeader(hdr []byte) int {
	return int(binary.LittleEndian.Uint16(hdr))
}
