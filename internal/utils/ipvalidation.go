package utils

import (
	"net/http"
	"strings"

	"github.com/seancfoley/ipaddress-go/ipaddr"
)

// ParseIP parses an IPv4 or IPv6 address, optionally with a prefix length.
func ParseIP(ipStr string) (*ipaddr.IPAddress, error) {
	return ipaddr.NewIPAddressString(strings.TrimSpace(ipStr)).ToAddress()
}

// NormalizeIP returns the canonical string form of a single address so that
// equivalent spellings ("::ffff:0:1", "::FFFF:0.0.0.1") map to one rate limit key.
// The second result is false when ipStr is not a single IP address.
func NormalizeIP(ipStr string) (string, bool) {
	if ipStr == "" {
		return "", false
	}
	addr, err := ParseIP(ipStr)
	if err != nil || addr == nil || addr.IsMultiple() || addr.IsPrefixed() {
		return "", false
	}
	return addr.ToCanonicalString(), true
}

// IsTrustedProxyIP checks if the given IP address is in the trusted proxy list.
// trustedProxies is a comma-separated string of IPs and CIDR ranges.
// Examples: "127.0.0.1,192.168.1.0/24" or "10.0.0.0/8"
func IsTrustedProxyIP(ipStr string, trustedProxies string) bool {
	ip, err := ParseIP(ipStr)
	if err != nil || ip == nil {
		return false
	}

	for _, proxy := range strings.Split(trustedProxies, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}

		block := ipaddr.NewIPAddressString(proxy).GetAddress()
		if block == nil {
			continue
		}
		if block.IsPrefixed() {
			block = block.ToPrefixBlock()
		}
		if block.Contains(ip) {
			return true
		}
	}

	return false
}

// ExtractIP extracts the IP address from a "host:port" string.
// If no port is present, returns the input as-is.
// Returns empty string if input is invalid.
func ExtractIP(addr string) string {
	// Handle IPv6 addresses with port: [::1]:8080
	if strings.HasPrefix(addr, "[") {
		if idx := strings.LastIndex(addr, "]:"); idx != -1 {
			return addr[1:idx]
		}
		// Just [::1] without port
		return strings.Trim(addr, "[]")
	}

	// Handle IPv4 addresses with port: 1.2.3.4:8080
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		// Multiple colons = IPv6 without port
		if strings.Count(addr, ":") > 1 {
			return addr
		}
		return addr[:idx]
	}

	return addr
}

// GetClientIPWithTrust extracts the client IP from the request with trusted proxy validation.
// trustProxyHeaders: "auto", "true", "false" - controls whether to trust proxy headers
// trustedProxyIPs: comma-separated list of trusted proxy IPs/CIDR ranges
//
// Header values that do not parse as an IP address are ignored.
func GetClientIPWithTrust(r *http.Request, trustProxyHeaders string, trustedProxyIPs string) string {
	remoteIP := ExtractIP(r.RemoteAddr)

	var shouldTrust bool
	switch trustProxyHeaders {
	case "true":
		shouldTrust = true
	case "false":
		shouldTrust = false
	default:
		// "auto" and unknown values: trust only requests coming from a trusted proxy
		shouldTrust = IsTrustedProxyIP(remoteIP, trustedProxyIPs)
	}

	if !shouldTrust {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip, ok := NormalizeIP(first); ok {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip, ok := NormalizeIP(xri); ok {
			return ip
		}
	}

	return remoteIP
}
