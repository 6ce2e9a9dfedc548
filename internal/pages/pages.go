// Package pages serves the relay's non-WebSocket HTTP surface: a landing
// page, a generated-client-config page, and a status endpoint. None of
// this is on the data path — it exists because a deployable relay binary
// needs something to answer plain HTTP requests with.
package pages

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/relaycore/vlessrelay/internal/config"
)

// Handler serves the landing, config, and status routes, falling back to
// a 404 for anything else. It holds no per-request state.
type Handler struct {
	cfg         config.ServerConfig
	version     string
	landingTmpl *template.Template
	configTmpl  *template.Template
}

// NewHandler builds a Handler bound to cfg. version is a display string
// shown on the landing page (e.g. a git tag or "dev").
func NewHandler(cfg config.ServerConfig, version string) *Handler {
	return &Handler{
		cfg:         cfg,
		version:     version,
		landingTmpl: template.Must(template.New("landing").Parse(landingHTML)),
		configTmpl:  template.Must(template.New("config").Parse(configHTML)),
	}
}

// ServeHTTP dispatches by path. It never touches request bodies and never
// participates in the WebSocket upgrade path — callers route upgrade
// requests elsewhere before reaching this handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/":
		h.serveLanding(w, r)
	case r.URL.Path == "/status" || r.URL.Path == "/api/status":
		h.serveStatus(w, r)
	case r.URL.Path == "/config":
		h.serveConfig(w, r)
	case isSingleSegmentPath(r.URL.Path):
		// GET /{userUUID}: the exact UUID value isn't checked against the
		// configured one — the page always renders this server's own
		// client config, matching the teacher's permissive routing style.
		h.serveConfig(w, r)
	default:
		http.NotFound(w, r)
	}
}

func isSingleSegmentPath(path string) bool {
	seg := strings.TrimPrefix(path, "/")
	return seg != "" && !strings.Contains(seg, "/")
}

type landingData struct {
	Version string
}

func (h *Handler) serveLanding(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = h.landingTmpl.Execute(w, landingData{Version: h.version})
}

type statusResponse struct {
	Status    string `json:"status"`
	UUID      string `json:"uuid"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) serveStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:    "ok",
		UUID:      h.cfg.Codec.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type configData struct {
	VlessURL    string
	ClashConfig string
	UUID        string
	Host        string
	Port        string
}

func (h *Handler) serveConfig(w http.ResponseWriter, r *http.Request) {
	host, port := config.ListenHostPort(h.cfg.ListenAddr)
	if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
		host = forwarded
	} else if r.Host != "" {
		host = r.Host
		if h, _, err := splitHostMaybePort(r.Host); err == nil {
			host = h
		}
	}

	vlessURL := BuildVlessURL(h.cfg.Codec.String(), host, port, h.cfg.Credit)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = h.configTmpl.Execute(w, configData{
		VlessURL:    vlessURL,
		ClashConfig: BuildClashConfig(h.cfg.Codec.String(), host, port),
		UUID:        h.cfg.Codec.String(),
		Host:        host,
		Port:        port,
	})
}

func splitHostMaybePort(hostport string) (string, string, error) {
	if !strings.Contains(hostport, ":") {
		return hostport, "", nil
	}
	i := strings.LastIndex(hostport, ":")
	return hostport[:i], hostport[i+1:], nil
}

// BuildVlessURL renders the vless:// client URL for the given uuid, host,
// port, and credit label, matching the wire format vless-compatible
// clients expect.
func BuildVlessURL(uuid, host, port, credit string) string {
	path := url.QueryEscape("/?ed=2048")
	u := fmt.Sprintf(
		"vless://%s@%s:%s?encryption=none&security=tls&sni=%s&fp=chrome&type=ws&host=%s&path=%s",
		uuid, host, port, host, host, path,
	)
	if credit != "" {
		u += "#" + url.QueryEscape(credit)
	}
	return u
}

// BuildClashConfig renders a minimal Clash proxy stanza for the relay.
func BuildClashConfig(uuid, host, port string) string {
	return fmt.Sprintf(`proxies:
  - name: relay
    type: vless
    server: %s
    port: %s
    uuid: %s
    network: ws
    tls: true
    udp: true
    servername: %s
    ws-opts:
      path: "/?ed=2048"
      headers:
        Host: %s
`, host, port, uuid, host, host)
}

const landingHTML = `<!DOCTYPE html>
<html><head><title>vlessrelay</title></head>
<body>
<h1>vlessrelay</h1>
<p>version {{.Version}}</p>
<p><a href="/config">client configuration</a></p>
<p><a href="/status">status</a></p>
</body></html>
`

const configHTML = `<!DOCTYPE html>
<html><head><title>vlessrelay configuration</title></head>
<body>
<h1>Client configuration</h1>
<h2>VLESS URL</h2>
<pre>{{.VlessURL}}</pre>
<h2>Clash</h2>
<pre>{{.ClashConfig}}</pre>
</body></html>
`
