// Package httpserver wires the plain HTTP landing/config/status routes
// and the WebSocket upgrade path onto a single net/http.Server.
package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/relaycore/vlessrelay/internal/pages"
	"github.com/relaycore/vlessrelay/internal/vless"
	"github.com/relaycore/vlessrelay/internal/wsrelay"
)

// Handler dispatches WebSocket upgrade requests to the relay and
// everything else to the pages handler.
type Handler struct {
	pages  *pages.Handler
	relay  wsrelay.Config
	logger *slog.Logger
}

// New builds the combined handler. relayCfg.Logger is replaced per
// request with a correlation-tagged child of logger; any value set there
// is ignored.
func New(pagesHandler *pages.Handler, relayCfg wsrelay.Config, logger *slog.Logger) *Handler {
	return &Handler{pages: pagesHandler, relay: relayCfg, logger: logger}
}

// ServeHTTP implements http.Handler. Any request with an Upgrade:
// websocket header is treated as a relay connection regardless of path,
// matching the spec's "any path triggers the relay" rule.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isUpgradeRequest(r) {
		h.serveRelay(w, r)
		return
	}
	h.pages.ServeHTTP(w, r)
}

func isUpgradeRequest(r *http.Request) bool {
	for _, v := range r.Header.Values("Upgrade") {
		if len(v) >= 9 && equalFoldASCII(v[:9], "websocket") {
			return true
		}
	}
	return false
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func (h *Handler) serveRelay(w http.ResponseWriter, r *http.Request) {
	logger := connectionLogger(h.logger, r)

	earlyData, err := decodeEarlyData(r.Header.Get("Sec-WebSocket-Protocol"))
	if err != nil {
		logger.Warn("invalid early data, rejecting upgrade", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // TLS/origin checking is the hosting platform's job; see §1
	})
	if err != nil {
		logger.Warn("websocket accept failed", "error", err)
		return
	}

	cfg := h.relay
	cfg.Logger = logger

	ctx := r.Context()
	serveErr := wsrelay.Serve(ctx, ws, earlyData, cfg)
	status := wsrelay.StatusFor(serveErr)
	if serveErr != nil {
		logger.Warn("connection ended", "error", serveErr, "close_code", status)
	} else {
		logger.Info("connection closed")
	}
	_ = ws.Close(status, "")
}

func decodeEarlyData(header string) ([]byte, error) {
	return vless.DecodeEarlyData(header)
}

// connectionLogger attaches per-connection correlation attributes to base,
// matching the teacher's structured-attribute logging style.
func connectionLogger(base *slog.Logger, r *http.Request) *slog.Logger {
	return base.With(
		"conn", newNonce(),
		"remote", r.RemoteAddr,
	)
}

// ListenAndServe runs the combined handler until ctx is cancelled, then
// shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", "error", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
