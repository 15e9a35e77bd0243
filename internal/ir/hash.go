package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainQuery = "lapis/query/v" + KeyVersion
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

// QueryKey computes the cache key of a serialized downstream query.
//
// The wire JSON is first re-encoded canonically, so two queries that only
// differ in key order or number spelling share a key. The canonical bytes
// are then hashed to a fixed-size identifier suitable as a map or table key.
// Equal canonical serializations always produce equal keys.
func QueryKey(queryJSON []byte) (string, error) {
	canonical, err := CanonicalizeJSON(queryJSON)
	if err != nil {
		return "", fmt.Errorf("QueryKey: failed to canonicalize: %w", err)
	}
	return hashWithDomain(DomainQuery, canonical), nil
}

// MustQueryKey is like QueryKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustQueryKey(queryJSON []byte) string {
	key, err := QueryKey(queryJSON)
	if err != nil {
		panic(err)
	}
	return key
}
