// Package config bootstraps the process-wide ServerConfig from environment
// variables and an optional config.json, generating a fresh server UUID
// when neither source supplies a valid one.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/relaycore/vlessrelay/internal/vless"
)

// DefaultListenAddr is used when neither --listen nor PORT is set.
const DefaultListenAddr = ":8000"

// DefaultDialTimeout is used when no --dial-timeout flag is set.
const DefaultDialTimeout = 10 * time.Second

// fileName is the on-disk persistence file, read at startup and written
// only when a fresh UUID is generated.
const fileName = "config.json"

// ServerConfig is the process-wide, read-only-after-init configuration.
type ServerConfig struct {
	Codec            vless.UUIDCodec
	FallbackUpstream string // empty disables the fallback retry
	Credit           string // opaque label echoed into generated client configs
	DoHEndpoint      string
	DialTimeout      time.Duration
	ListenAddr       string
}

// fileContents is the config.json shape: {"uuid": "<canonical-uuid>"}.
type fileContents struct {
	UUID string `json:"uuid"`
}

// Load builds a ServerConfig from the environment, falling back to
// config.json, and finally to a freshly generated UUID which is then
// persisted to config.json. A failed config.json read is logged and
// non-fatal (the UUID is generated fresh); a failed write is logged and
// non-fatal (the in-memory UUID is used regardless). Only a UUID string
// that is present but structurally invalid aborts Load.
func Load(logger *slog.Logger) (ServerConfig, error) {
	listenAddr := envOr("PORT", "")
	if listenAddr != "" {
		listenAddr = ":" + listenAddr
	} else {
		listenAddr = DefaultListenAddr
	}

	cfg := ServerConfig{
		FallbackUpstream: os.Getenv("PROXYIP"),
		Credit:           os.Getenv("CREDIT"),
		DoHEndpoint:      os.Getenv("DOH_ENDPOINT"),
		DialTimeout:      DefaultDialTimeout,
		ListenAddr:       listenAddr,
	}

	codec, err := resolveCodec(logger)
	if err != nil {
		return ServerConfig{}, err
	}
	cfg.Codec = codec
	return cfg, nil
}

// resolveCodec determines the server UUID: explicit UUID env var wins (and
// must be valid), else config.json's stored value, else a freshly
// generated UUID persisted back to config.json.
func resolveCodec(logger *slog.Logger) (vless.UUIDCodec, error) {
	if raw := os.Getenv("UUID"); raw != "" {
		codec, err := vless.NewUUIDCodec(raw)
		if err != nil {
			return vless.UUIDCodec{}, fmt.Errorf("config: UUID env var is not a valid UUID: %w", err)
		}
		return codec, nil
	}

	if raw, ok := readFile(logger); ok {
		if codec, err := vless.NewUUIDCodec(raw); err == nil {
			return codec, nil
		}
		logger.Warn("config.json uuid is invalid, generating a fresh one")
	}

	fresh, err := vless.GenerateUUID()
	if err != nil {
		return vless.UUIDCodec{}, fmt.Errorf("config: generate uuid: %w", err)
	}
	codec, err := vless.NewUUIDCodec(fresh)
	if err != nil {
		return vless.UUIDCodec{}, fmt.Errorf("config: generated uuid rejected: %w", err)
	}
	writeFile(logger, fresh)
	return codec, nil
}

// readFile returns the stored UUID string and true if config.json exists
// and parses; any failure is logged at warn and reported as ok=false.
func readFile(logger *slog.Logger) (string, bool) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read config.json", "error", err)
		}
		return "", false
	}
	var fc fileContents
	if err := json.Unmarshal(data, &fc); err != nil {
		logger.Warn("failed to parse config.json", "error", err)
		return "", false
	}
	return fc.UUID, fc.UUID != ""
}

// writeFile persists uuid to config.json. Failure is logged and non-fatal.
func writeFile(logger *slog.Logger, uuid string) {
	data, err := json.MarshalIndent(fileContents{UUID: uuid}, "", "  ")
	if err != nil {
		logger.Warn("failed to marshal config.json", "error", err)
		return
	}
	if err := os.WriteFile(fileName, data, 0o600); err != nil {
		logger.Warn("failed to write config.json", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ListenHostPort splits addr into a (host, port) pair suitable for
// rendering into client-facing URLs, defaulting host to "localhost" when
// addr has no explicit host (e.g. ":8000") or a wildcard host such as
// "0.0.0.0" or "::".
func ListenHostPort(addr string) (host, port string) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "localhost", addr
	}
	if ip := net.ParseIP(h); h == "" || (ip != nil && ip.IsUnspecified()) {
		h = "localhost"
	}
	return h, p
}
