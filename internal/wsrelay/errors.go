// Package wsrelay drives the per-connection relay state machine: it reads
// the VLESS request header out of a WebSocket's binary message stream,
// dials the requested upstream (TCP, or DNS-over-HTTPS for UDP/53), and
// bridges bytes in both directions until either side closes.
package wsrelay

import (
	"errors"
	"fmt"

	"github.com/coder/websocket"
)

// Taxonomy sentinels. wrap() attaches one of these to a concrete cause so
// classify() can route it to the right close code without a type switch
// at every call site.
var (
	errInvalidUser = errors.New("wsrelay: auth error")
	errProtocol    = errors.New("wsrelay: protocol error")
	errUpstream    = errors.New("wsrelay: upstream error")
	errClient      = errors.New("wsrelay: client error")
)

// wrap attaches taxonomy sentinel to cause so errors.Is(err, sentinel)
// succeeds while the original cause remains inspectable via errors.Unwrap.
func wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// kind classifies why a connection ended, so Serve can pick the right
// WebSocket close code without every call site having to know the
// mapping.
type kind int

const (
	kindClient kind = iota // peer closed/aborted: normal termination
	kindProtocol            // malformed header, bad early data, text frame, UDP off-port-53
	kindAuth                // UUID mismatch
	kindUpstream            // TCP dial/read/write or DoH failure with no eligible fallback
	kindInternal            // unexpected runtime failure
)

// closeCode returns the WebSocket status code for a termination kind, per
// the error taxonomy: ProtocolError->1002, AuthError->1008,
// UpstreamError/ClientError->1000, InternalError->1011.
func closeCode(k kind) websocket.StatusCode {
	switch k {
	case kindProtocol:
		return websocket.StatusProtocolError
	case kindAuth:
		return websocket.StatusPolicyViolation
	case kindUpstream:
		// Deliberately the same code as kindClient: a client has no use
		// for distinguishing "upstream refused/closed" from "I closed
		// you" on the wire, and collapsing both to a normal closure
		// avoids leaking upstream reachability as an oracle. The
		// distinction still survives in the connection log.
		return websocket.StatusNormalClosure
	case kindInternal:
		return websocket.StatusInternalError
	default:
		return websocket.StatusNormalClosure
	}
}

// classify maps a parse/dial/io error to its taxonomy kind, used to pick a
// close code and a log level at the Serve boundary.
func classify(err error) kind {
	switch {
	case errors.Is(err, errInvalidUser):
		return kindAuth
	case errors.Is(err, errProtocol):
		return kindProtocol
	case errors.Is(err, errUpstream):
		return kindUpstream
	case errors.Is(err, errClient):
		return kindClient
	default:
		return kindInternal
	}
}
