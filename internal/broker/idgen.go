package broker

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// generateDeviceID mints an opaque identifier from a cryptographically
// unbiased 64-bit source, re-rolling whenever exists reports a collision
// with an id already in use. Device ids are the only identifiers the
// broker itself generates; service/characteristic/descriptor ids are
// supplied by the adapter.
func generateDeviceID(exists func(string) bool) (string, error) {
	var buf [8]byte
	for attempt := 0; attempt < 64; attempt++ {
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("generate device id: %w", err)
		}
		id := fmt.Sprintf("%016x", binary.BigEndian.Uint64(buf[:]))
		if !exists(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate device id: exhausted retries")
}
