package ratelimit

import (
	"github.com/naazbooks/storefront/internal/utils"
)

// HintKind records where a ClientHint value came from.
type HintKind int

const (
	// HintNone means no client attribute was available.
	HintNone HintKind = iota

	// HintNetwork is the peer address observed by the server, after trusted
	// proxy headers were applied. Proxies, NAT and VPNs make it shared or
	// rotating, so it groups clients rather than identifying one.
	HintNetwork

	// HintFingerprint is a hash of client-reported attributes (user agent,
	// language, screen, timezone). The client controls every input.
	HintFingerprint
)

func (k HintKind) String() string {
	switch k {
	case HintNetwork:
		return "network"
	case HintFingerprint:
		return "fingerprint"
	default:
		return "none"
	}
}

// ClientHint is the anonymous half of rate limit key derivation.
//
// Neither kind is a verified identity. A hint only decides which counter an
// anonymous request is charged to; it must never gate access on its own.
type ClientHint struct {
	Value string
	Kind  HintKind
}

// NetworkHint builds a hint from a client address. The address is put in
// canonical form so equivalent spellings share a counter. A value that is
// not a single IP address yields the zero hint.
func NetworkHint(addr string) ClientHint {
	ip, ok := utils.NormalizeIP(addr)
	if !ok {
		return ClientHint{}
	}
	return ClientHint{Value: ip, Kind: HintNetwork}
}

// FingerprintHint hashes client-reported attributes into a hint.
// With no non-empty part it yields the zero hint.
func FingerprintHint(parts ...string) ClientHint {
	for _, p := range parts {
		if p != "" {
			return ClientHint{Value: utils.ClientFingerprint(parts...), Kind: HintFingerprint}
		}
	}
	return ClientHint{}
}

// IsZero reports whether the hint carries no value.
func (h ClientHint) IsZero() bool {
	return h.Value == ""
}

// KeyGenerator derives the counter key for a request. userID is empty for
// anonymous callers.
type KeyGenerator func(userID string, hint ClientHint) string

// DefaultKey returns "user:<id>" for signed-in callers, "ip:<hint>" for a
// network hint, "fp:<hint>" for a fingerprint and "anonymous" otherwise.
func DefaultKey(userID string, hint ClientHint) string {
	switch {
	case userID != "":
		return "user:" + userID
	case hint.Kind == HintFingerprint && !hint.IsZero():
		return "fp:" + hint.Value
	case !hint.IsZero():
		return "ip:" + hint.Value
	default:
		return "anonymous"
	}
}

// Namespaced prefixes the keys produced by gen (DefaultKey when nil) with
// namespace so that different actions never share a counter.
func Namespaced(namespace string, gen KeyGenerator) KeyGenerator {
	if gen == nil {
		gen = DefaultKey
	}
	return func(userID string, hint ClientHint) string {
		return namespace + ":" + gen(userID, hint)
	}
}
