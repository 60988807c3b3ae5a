package utils

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ClientFingerprint hashes client-reported attributes (user agent, language,
// screen size, timezone) into a short stable identifier.
//
// Every input is controlled by the client. The result groups requests from
// the same browser setup and nothing more; it is not an identity.
func ClientFingerprint(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = strings.TrimSpace(p)
	}
	sum := blake2b.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(sum[:16])
}
