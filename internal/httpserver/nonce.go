package httpserver

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// shutdownGrace bounds how long ListenAndServe waits for in-flight
// requests to finish during a graceful shutdown.
const shutdownGrace = 5 * time.Second

// newNonce returns a short random hex string used as a connection
// correlation tag. It is diagnostic only, never a security token.
func newNonce() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "xxxxxxxx"
	}
	return hex.EncodeToString(b[:])
}
