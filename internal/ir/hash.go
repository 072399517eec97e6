package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainUpdate = "blockdoc/update/v1"
	DomainState  = "blockdoc/state/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// UpdateID computes the content-addressed ID of an encoded update.
// Two replicas journaling the same update bytes get the same ID, which is
// what makes journal appends idempotent.
func UpdateID(update []byte) string {
	return hashWithDomain(DomainUpdate, update)
}

// StateDigest computes a digest of a document state snapshot.
// Converged replicas produce identical digests.
func StateDigest(state DocumentState) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", err
	}
	return hashWithDomain(DomainState, canonical), nil
}
