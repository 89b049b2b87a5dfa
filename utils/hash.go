package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// RequestHash returns the sha256 of the canonical form of a JSON payload.
// The payload is decoded and re-encoded so that key order and whitespace do
// not affect the hash; two structurally equal bodies always hash the same.
func RequestHash(payload []byte) (string, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
