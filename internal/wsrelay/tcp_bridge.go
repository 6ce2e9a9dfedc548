package wsrelay

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/coder/websocket"
)

// tcpBridgeOutcome reports how one TCP↔WebSocket bridging attempt ended.
type tcpBridgeOutcome struct {
	// cleanUpstreamEOF is true when the TCP side closed normally and the
	// loop ended because of that (as opposed to the WebSocket side
	// closing first). Fallback retry eligibility hinges on this plus
	// everReceived being false.
	cleanUpstreamEOF bool
	err              error
}

// bridgeTCP writes residual to tcp, then bridges ws<->tcp until either
// side finishes. Bytes from tcp to ws are passed through rw, which
// prefixes the one-shot VLESS response header to the first non-empty
// batch. everReceived is set to true the first time any bytes arrive from
// tcp, and is shared across fallback attempts by the caller.
func bridgeTCP(ctx context.Context, ws *websocket.Conn, tcp net.Conn, residual []byte, rw *responseWriter, everReceived *bool) tcpBridgeOutcome {
	if len(residual) > 0 {
		if _, err := tcp.Write(residual); err != nil {
			return tcpBridgeOutcome{err: wrap(errUpstream, err)}
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wsDone := make(chan error, 1)
	tcpDone := make(chan error, 1)

	go func() { wsDone <- wsToTCP(ctx, ws, tcp) }()
	go func() { tcpDone <- tcpToWS(ctx, ws, tcp, rw, everReceived) }()

	select {
	case err := <-wsDone:
		cancel()
		_ = tcp.SetReadDeadline(time.Now())
		<-tcpDone
		return tcpBridgeOutcome{err: err}
	case err := <-tcpDone:
		cancel()
		<-wsDone
		return tcpBridgeOutcome{cleanUpstreamEOF: err == nil, err: err}
	}
}

func wsToTCP(ctx context.Context, ws *websocket.Conn, tcp net.Conn) error {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil // shutting down because the other direction finished
			}
			return classifyWSReadErr(err)
		}
		if typ == websocket.MessageText {
			return wrap(errProtocol, errors.New("text frame received on binary relay"))
		}
		if len(data) == 0 {
			continue
		}
		if _, err := tcp.Write(data); err != nil {
			return wrap(errUpstream, err)
		}
	}
}

func tcpToWS(ctx context.Context, ws *websocket.Conn, tcp net.Conn, rw *responseWriter, everReceived *bool) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := tcp.Read(buf)
		if n > 0 {
			*everReceived = true
			if werr := ws.Write(ctx, websocket.MessageBinary, rw.frame(buf[:n])); werr != nil {
				return wrap(errClient, werr)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil // unblocked by our own SetReadDeadline; not a real failure
			}
			if errors.Is(err, io.EOF) {
				return nil // clean upstream close
			}
			return wrap(errUpstream, err)
		}
	}
}

// classifyWSReadErr turns a ws.Read error into the taxonomy: a normal
// close is a nil-equivalent handled by the caller's channel protocol, an
// abnormal close or transport error is a ClientError.
func classifyWSReadErr(err error) error {
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.StatusNormalClosure {
		return nil
	}
	return wrap(errClient, err)
}
