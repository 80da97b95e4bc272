// Package id generates short, sortable, unique identifiers.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate creates a new unique ID with the given prefix.
// Format: <prefix>-<unix nanos>-<random>
// Example: run-1701432000123456789-a1b2c3d4
func Generate(prefix string) string {
	timestamp := time.Now().UnixNano()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		// Fallback to timestamp only if crypto/rand fails
		return fmt.Sprintf("%s-%d", prefix, timestamp)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, timestamp, hex.EncodeToString(random))
}
