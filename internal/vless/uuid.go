package vless

import (
	"crypto/subtle"
	"fmt"

	"github.com/google/uuid"
)

// UUIDCodec compares on-the-wire UUID bytes against a single configured
// server UUID. The wire bytes are never re-validated for RFC 4122 form —
// only the configured UUID is, at startup.
type UUIDCodec struct {
	server [16]byte
}

// NewUUIDCodec validates the canonical-form UUID string (version nibble 4,
// variant nibble in {8,9,a,b}) and returns a codec bound to it.
func NewUUIDCodec(canonical string) (UUIDCodec, error) {
	id, err := uuid.Parse(canonical)
	if err != nil {
		return UUIDCodec{}, fmt.Errorf("vless: parse server uuid: %w", err)
	}
	if id.Version() != 4 {
		return UUIDCodec{}, fmt.Errorf("vless: server uuid %q is not version 4", canonical)
	}
	switch id.Variant() {
	case uuid.RFC4122:
	default:
		return UUIDCodec{}, fmt.Errorf("vless: server uuid %q has an invalid variant nibble", canonical)
	}
	return UUIDCodec{server: id}, nil
}

// GenerateUUID returns a fresh random version-4 UUID in canonical form.
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("vless: generate uuid: %w", err)
	}
	return id.String(), nil
}

// Equal reports whether the 16 wire bytes match the configured server UUID.
// Comparison is constant-time to avoid leaking timing information about
// which byte differs.
func (c UUIDCodec) Equal(wire []byte) bool {
	if len(wire) != 16 {
		return false
	}
	return subtle.ConstantTimeCompare(c.server[:], wire) == 1
}

// String returns the configured UUID in canonical textual form.
func (c UUIDCodec) String() string {
	return uuid.UUID(c.server).String()
}

// Bytes returns the configured UUID's 16 raw bytes.
func (c UUIDCodec) Bytes() [16]byte {
	return c.server
}
