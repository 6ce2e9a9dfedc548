package wsrelay

import (
	"context"
	"log/slog"
	"net"

	"github.com/coder/websocket"
	"github.com/relaycore/vlessrelay/internal/vless"
)

// serveTCP dials req.Endpoint, writes residual to it, and bridges it with
// ws. If the dial succeeds but the connection closes before any bytes
// ever reach the client, and cfg.FallbackHost is configured, it retries
// once against FallbackHost on the same port.
func serveTCP(ctx context.Context, ws *websocket.Conn, req vless.Request, residual []byte, cfg Config, logger *slog.Logger) error {
	addr := req.Endpoint.HostPort()
	conn, err := dialTCP(ctx, cfg.dialer(), addr, cfg.DialTimeout)
	if err != nil {
		return wrap(errUpstream, err)
	}

	rw := newResponseWriter(vless.Response(req.Version))
	everReceived := false

	outcome := bridgeTCP(ctx, ws, conn, residual, rw, &everReceived)
	_ = conn.Close()

	if outcome.cleanUpstreamEOF && !everReceived && cfg.FallbackHost != "" {
		fallbackAddr := net.JoinHostPort(cfg.FallbackHost, req.Endpoint.PortString())
		logger.Info("retrying via fallback upstream", "primary", addr, "fallback", fallbackAddr)

		fbConn, err := dialTCP(ctx, cfg.dialer(), fallbackAddr, cfg.DialTimeout)
		if err != nil {
			return wrap(errUpstream, err)
		}
		outcome = bridgeTCP(ctx, ws, fbConn, residual, rw, &everReceived)
		_ = fbConn.Close()
	}

	return outcome.err
}
