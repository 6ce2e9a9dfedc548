package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/relaycore/vlessrelay/internal/config"
	"github.com/relaycore/vlessrelay/internal/pages"
	"github.com/relaycore/vlessrelay/internal/vless"
	"github.com/relaycore/vlessrelay/internal/wsrelay"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.ServerConfig {
	t.Helper()
	codec, err := vless.NewUUIDCodec("e5185305-1984-4084-81e0-f77271159c62")
	if err != nil {
		t.Fatal(err)
	}
	return config.ServerConfig{Codec: codec, ListenAddr: ":8000"}
}

func TestIsUpgradeRequest(t *testing.T) {
	cases := []struct {
		header string
		want   bool
	}{
		{"websocket", true},
		{"WebSocket", true},
		{"", false},
		{"keep-alive", false},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if c.header != "" {
			req.Header.Set("Upgrade", c.header)
		}
		if got := isUpgradeRequest(req); got != c.want {
			t.Errorf("isUpgradeRequest(Upgrade=%q) = %v, want %v", c.header, got, c.want)
		}
	}
}

func TestServeHTTPRoutesNonUpgradeToPages(t *testing.T) {
	pagesHandler := pages.NewHandler(testConfig(t), "dev")
	h := New(pagesHandler, wsrelay.Config{Codec: testConfig(t).Codec}, testLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "vlessrelay") {
		t.Errorf("expected landing page body, got %s", rec.Body.String())
	}
}

func TestServeHTTPUpgradesToRelay(t *testing.T) {
	cfg := testConfig(t)
	pagesHandler := pages.NewHandler(cfg, "dev")

	relayCfg := wsrelay.Config{
		Codec: cfg.Codec,
		Dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			// Should never be reached: the auth check fails before any dial.
			return nil, io.ErrClosedPipe
		},
	}
	h := New(pagesHandler, relayCfg, testLogger())
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.CloseNow()

	// All-zero UUID triggers an immediate auth-failure close, confirming
	// the upgrade path reaches wsrelay.Serve rather than the pages router.
	header := make([]byte, 24)
	if err := ws.Write(ctx, websocket.MessageBinary, header); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err = ws.Read(ctx)
	if err == nil {
		t.Fatal("expected the connection to close on auth failure")
	}
}
