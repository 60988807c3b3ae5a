package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	mrand "math/rand/v2"
	"strconv"
	"time"
)

// MaskToken masks a token for safe logging/display
// Shows first 3 and last 3 characters, masks the middle
// Example: "abc123xyz789" -> "abc***789"
func MaskToken(token string) string {
	if token == "" {
		return ""
	}

	// For very short tokens (6 chars or less), mask completely
	if len(token) <= 6 {
		return "***"
	}

	return token[:3] + "***" + token[len(token)-3:]
}

// RandomHex reads n bytes from src and returns them hex encoded.
// A nil src uses crypto/rand.
func RandomHex(src io.Reader, n int) (string, error) {
	if src == nil {
		src = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// FallbackToken builds a non-cryptographic token from the current time and
// math/rand. It is only used when the secure random source fails and must
// never be treated as unguessable.
func FallbackToken(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 36) + strconv.FormatUint(mrand.Uint64(), 36)
}
