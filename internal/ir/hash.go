package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with older journals.
const (
	DomainItem   = "rqe/item/v1"
	DomainSchema = "rqe/schema/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the content hash of an item. Two items with equal
// content hash equally regardless of key insertion order.
func ContentHash(item IRObject) (string, error) {
	canonical, err := MarshalCanonical(item)
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainItem, canonical), nil
}

// MustContentHash is like ContentHash but panics on error.
func MustContentHash(item IRObject) string {
	h, err := ContentHash(item)
	if err != nil {
		panic(err)
	}
	return h
}

// SchemaHash hashes an arbitrary description of a schema. The journal stores
// it so replays can detect a schema change.
func SchemaHash(desc IRValue) (string, error) {
	canonical, err := MarshalCanonical(desc)
	if err != nil {
		return "", fmt.Errorf("SchemaHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSchema, canonical), nil
}
