package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with old journals.
const (
	DomainScene = "scenesync/scene/v1"
	DomainTrace = "scenesync/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte keeps
// the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecHash computes the content hash of a compiled scene. Two scenes hash
// equal iff their canonical forms are byte-identical.
func SpecHash(spec SceneSpec) (string, error) {
	canonical, err := MarshalCanonical(spec.Value())
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainScene, canonical), nil
}

// TraceHash hashes a recorded list of native calls. The harness uses it to
// compare runs without diffing full traces.
func TraceHash(trace List) (string, error) {
	canonical, err := MarshalCanonical(trace)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustSpecHash is like SpecHash but panics on error.
// Use only in tests or when the SceneSpec is known to be finite.
func MustSpecHash(spec SceneSpec) string {
	h, err := SpecHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}
