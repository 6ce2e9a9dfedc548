package vless

import (
	"encoding/binary"
)

// Command identifies the proxied transport requested by the client.
type Command byte

const (
	CommandTCP Command = 1
	CommandUDP Command = 2
)

// minHeaderLen is the shortest possible request header: version(1) +
// uuid(16) + optionLength(1) + command(1) + port(2) + addressType(1) +
// the smallest address (a single-byte IPv4... actually 4 bytes, but the
// fast-reject threshold from the spec is the fixed prefix up through the
// address type byte, which is 22 bytes, plus at least 2 bytes of address
// and nothing else is guaranteed — the spec pins this fast-reject bound
// at 24).
const minHeaderLen = 24

// Request is the parsed VLESS request header.
type Request struct {
	Version       byte
	Command       Command
	Endpoint      Endpoint
	PayloadOffset int // offset into the parsed buffer where residual payload begins
}

// Response is the two-byte VLESS response header: [version, addonLength].
// It is emitted exactly once per connection, prefixed to the first batch
// of upstream-to-client bytes.
func Response(version byte) []byte {
	return []byte{version, 0}
}

// ParseHeader attempts to parse a VLESS request header from buf, validating
// the embedded UUID against codec. It returns ErrNeedMore if buf does not
// yet contain a complete header; the caller should append more bytes and
// retry — no bytes are consumed on ErrNeedMore. On success, Request.Endpoint
// is populated and PayloadOffset points at the first byte of buf following
// the header.
func ParseHeader(buf []byte, codec UUIDCodec) (Request, error) {
	if len(buf) < minHeaderLen {
		return Request{}, ErrNeedMore
	}

	version := buf[0]
	if !codec.Equal(buf[1:17]) {
		return Request{}, ErrInvalidUser
	}

	optionLen := int(buf[17])
	off := 18 + optionLen // start of addons; addons themselves are skipped/ignored
	if len(buf) < off+1 {
		return Request{}, ErrNeedMore
	}

	cmdByte := buf[off]
	off++
	var cmd Command
	switch cmdByte {
	case byte(CommandTCP):
		cmd = CommandTCP
	case byte(CommandUDP):
		cmd = CommandUDP
	default:
		return Request{}, ErrUnsupportedCommand
	}

	if len(buf) < off+2 {
		return Request{}, ErrNeedMore
	}
	port := binary.BigEndian.Uint16(buf[off : off+2])
	off += 2

	if len(buf) < off+1 {
		return Request{}, ErrNeedMore
	}
	atype := buf[off]
	off++

	var ep Endpoint
	ep.Port = port

	switch atype {
	case byte(AddressIPv4):
		if len(buf) < off+4 {
			return Request{}, ErrNeedMore
		}
		ep.Type = AddressIPv4
		ep.IP = append([]byte(nil), buf[off:off+4]...)
		off += 4
	case byte(AddressDomain):
		if len(buf) < off+1 {
			return Request{}, ErrNeedMore
		}
		l := int(buf[off])
		off++
		if l == 0 {
			return Request{}, ErrEmptyAddress
		}
		if len(buf) < off+l {
			return Request{}, ErrNeedMore
		}
		ep.Type = AddressDomain
		ep.Domain = string(buf[off : off+l])
		off += l
	case byte(AddressIPv6):
		if len(buf) < off+16 {
			return Request{}, ErrNeedMore
		}
		ep.Type = AddressIPv6
		ep.IP = append([]byte(nil), buf[off:off+16]...)
		off += 16
	default:
		return Request{}, ErrInvalidAddressType
	}

	if cmd == CommandUDP && port != 53 {
		return Request{}, ErrUDPNotPermitted
	}

	return Request{
		Version:       version,
		Command:       cmd,
		Endpoint:      ep,
		PayloadOffset: off,
	}, nil
}
