// Package vless implements the VLESS request/response wire format: UUID
// authentication, early-data decoding, and the variable-length request
// header that precedes every proxied stream.
package vless

import "errors"

// Parse errors returned by ParseHeader. Callers distinguish them with
// errors.Is; NeedMore is not a failure, it means "call again with more
// bytes".
var (
	// ErrNeedMore indicates the buffer does not yet contain a full header.
	// The caller should read more bytes from the WebSocket and retry.
	ErrNeedMore = errors.New("vless: need more bytes")

	// ErrInvalidUser indicates the UUID in the header does not match the
	// configured server UUID.
	ErrInvalidUser = errors.New("vless: invalid user")

	// ErrUnsupportedCommand indicates a command byte other than TCP or UDP.
	ErrUnsupportedCommand = errors.New("vless: unsupported command")

	// ErrInvalidAddressType indicates an address type byte other than
	// IPv4, IPv6, or domain.
	ErrInvalidAddressType = errors.New("vless: invalid address type")

	// ErrEmptyAddress indicates a domain address with a zero length byte.
	ErrEmptyAddress = errors.New("vless: empty address")

	// ErrUDPNotPermitted indicates a UDP request for a port other than 53.
	ErrUDPNotPermitted = errors.New("vless: udp only permitted on port 53")

	// ErrInvalidEarlyData indicates the sec-websocket-protocol header did
	// not decode as URL-safe base64.
	ErrInvalidEarlyData = errors.New("vless: invalid early data")
)
