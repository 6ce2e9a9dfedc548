package wsrelay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/relaycore/vlessrelay/internal/udpdns"
	"github.com/relaycore/vlessrelay/internal/vless"
)

// Config carries the immutable, process-wide settings the relay needs to
// serve one connection. It is built once at startup and never mutated.
type Config struct {
	Codec        vless.UUIDCodec
	FallbackHost string          // empty disables the fallback retry
	DialTimeout  time.Duration   // TCP dial timeout; zero uses defaultDialTimeout
	Dial         DialFunc        // nil uses (&net.Dialer{}).DialContext
	DoHEndpoint  string          // empty uses udpdns.DefaultEndpoint
	DoHClient    udpdns.HTTPDoer // nil uses http.DefaultClient
	Logger       *slog.Logger
}

func (c Config) dialer() DialFunc {
	if c.Dial != nil {
		return c.Dial
	}
	return defaultDialer
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Serve drives one connection's lifecycle: it accumulates bytes from ws
// until a complete VLESS request header parses, then dials the requested
// upstream (TCP) or resolver (UDP/53) and bridges bytes until either side
// closes. earlyData, if non-empty, is treated as already-received bytes
// ahead of the first ws.Read — the decoded sec-websocket-protocol payload.
//
// The returned error is nil only for a clean, expected termination with
// no data ever exchanged in error; StatusFor(err) maps any error
// (including nil) to the WebSocket close code the caller should send.
func Serve(ctx context.Context, ws *websocket.Conn, earlyData []byte, cfg Config) error {
	logger := cfg.logger()

	headerBuf := append([]byte(nil), earlyData...)
	var req vless.Request
	for {
		var err error
		req, err = vless.ParseHeader(headerBuf, cfg.Codec)
		if err == nil {
			break
		}
		if !errors.Is(err, vless.ErrNeedMore) {
			return wrapParseError(err)
		}

		typ, data, rerr := ws.Read(ctx)
		if rerr != nil {
			return classifyWSReadErr(rerr)
		}
		if typ == websocket.MessageText {
			return wrap(errProtocol, errors.New("text frame received before header was parsed"))
		}
		headerBuf = append(headerBuf, data...)
	}

	residual := headerBuf[req.PayloadOffset:]
	logger = logger.With("transport", transportName(req.Command), "target", req.Endpoint.String())
	logger.Info("request parsed")

	switch req.Command {
	case vless.CommandTCP:
		return serveTCP(ctx, ws, req, residual, cfg, logger)
	case vless.CommandUDP:
		return serveUDP(ctx, ws, req, residual, cfg, logger)
	default:
		return wrap(errProtocol, vless.ErrUnsupportedCommand)
	}
}

func transportName(cmd vless.Command) string {
	if cmd == vless.CommandUDP {
		return "udp"
	}
	return "tcp"
}

// wrapParseError routes a vless.ParseHeader error to the auth/protocol
// taxonomy kind.
func wrapParseError(err error) error {
	if errors.Is(err, vless.ErrInvalidUser) {
		return wrap(errInvalidUser, err)
	}
	return wrap(errProtocol, err)
}

// StatusFor maps a Serve error (nil included) to the WebSocket close code
// the caller should send.
func StatusFor(err error) websocket.StatusCode {
	if err == nil {
		return websocket.StatusNormalClosure
	}
	return closeCode(classify(err))
}
