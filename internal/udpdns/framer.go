// Package udpdns implements the length-prefixed datagram framing used by
// the UDP/53 (DNS-over-HTTPS) branch of the relay, and the DoH client that
// resolves each framed datagram.
package udpdns

import (
	"encoding/binary"
	"errors"
)

// ErrZeroLengthDatagram is returned by Decode when a frame declares a
// zero-length datagram.
var ErrZeroLengthDatagram = errors.New("udpdns: zero-length datagram")

// ErrShortFrame is returned by Decode when a WebSocket frame ends with
// fewer than 2 bytes, or fewer bytes than its declared length, left over.
// Per the wire contract a datagram never spans two WebSocket frames, so
// this is always a framing violation rather than a signal to wait for
// more data.
var ErrShortFrame = errors.New("udpdns: datagram framing truncated")

// Decode splits one WebSocket frame's payload into the datagrams it packs,
// each prefixed on the wire by a big-endian uint16 length. It returns the
// individual datagram payloads in order.
func Decode(frame []byte) ([][]byte, error) {
	var datagrams [][]byte
	for len(frame) > 0 {
		if len(frame) < 2 {
			return nil, ErrShortFrame
		}
		l := binary.BigEndian.Uint16(frame[:2])
		if l == 0 {
			return nil, ErrZeroLengthDatagram
		}
		frame = frame[2:]
		if len(frame) < int(l) {
			return nil, ErrShortFrame
		}
		datagrams = append(datagrams, frame[:l])
		frame = frame[l:]
	}
	return datagrams, nil
}

// Encode prepends a big-endian uint16 length to payload, producing exactly
// 2+len(payload) bytes.
func Encode(payload []byte) []byte {
	out := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(out, uint16(len(payload)))
	copy(out[2:], payload)
	return out
}
