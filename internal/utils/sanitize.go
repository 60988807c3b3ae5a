package utils

import (
	"net/mail"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// MaxSearchQueryLength bounds the length of a sanitized search query in runes.
const MaxSearchQueryLength = 100

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(union|select|insert|update|delete|drop|create|alter|exec|execute|truncate)\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// StripHTML removes every tag from s and returns the remaining text.
// The contents of script and style elements are dropped entirely.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way we keep what was collected
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTextElement(name) {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTextElement(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRawTextElement(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

// EscapeHTML escapes the characters <, >, &, ' and " so s can be embedded in markup.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// SanitizeText strips markup and control characters, collapses runs of
// whitespace and trims the result. When maxLen is positive the result is
// truncated to maxLen runes.
func SanitizeText(s string, maxLen int) string {
	s = StripHTML(s)
	s = strings.Map(func(r rune) rune {
		if r == utf8.RuneError || (unicode.IsControl(r) && !unicode.IsSpace(r)) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
	return truncateRunes(s, maxLen)
}

// SanitizeSQLInput removes quote characters, statement separators, comment
// markers and data-modifying keywords from s.
//
// This is a last line of defence for values echoed into logs or free-text
// filters. Queries must still use bound parameters.
func SanitizeSQLInput(s string) string {
	replacer := strings.NewReplacer(
		"'", "",
		`"`, "",
		";", "",
		`\`, "",
		"--", "",
		"/*", "",
		"*/", "",
	)
	s = replacer.Replace(s)
	s = sqlKeywordPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// SanitizeNoSQLInput removes operator markers and object delimiters so a
// string value cannot be interpreted as a document query operator.
func SanitizeNoSQLInput(s string) string {
	return strings.TrimSpace(strings.NewReplacer("$", "", "{", "", "}", "").Replace(s))
}

// SanitizeObject walks decoded JSON (maps, slices and scalars) and returns a
// copy where every string is passed through SanitizeText. Map keys that start
// with "$" or contain "." are dropped because document stores treat them as
// operators or paths.
func SanitizeObject(v any) any {
	switch val := v.(type) {
	case string:
		return SanitizeText(val, 0)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
				continue
			}
			out[SanitizeText(k, 0)] = SanitizeObject(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = SanitizeObject(child)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, child := range val {
			out[i] = SanitizeText(child, 0)
		}
		return out
	default:
		return v
	}
}

// SanitizeFilename removes dangerous characters from filenames
// This prevents:
// - HTTP header injection (quotes, newlines)
// - Path traversal (slashes, backslashes)
// - Control characters that could break logs or displays
func SanitizeFilename(filename string) string {
	if filename == "" {
		return "download"
	}

	// Remove path components - only keep the base filename
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))

	var sanitized strings.Builder
	sanitized.Grow(len(filename))

	for _, r := range filename {
		// Allow: alphanumeric, spaces, hyphens, underscores, periods
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' || r == '.' {
			sanitized.WriteRune(r)
		} else {
			sanitized.WriteRune('_')
		}
	}

	result := strings.Trim(sanitized.String(), " .")

	if result == "" || strings.Trim(result, ".") == "" {
		return "download"
	}

	// Limit length to 255 bytes (filesystem limitation)
	if len(result) > 255 {
		ext := filepath.Ext(result)
		if len(ext) > 0 && len(ext) < 20 {
			result = truncateBytes(result[:len(result)-len(ext)], 255-len(ext)) + ext
		} else {
			result = truncateBytes(result, 255)
		}
	}

	return result
}

// SanitizeEmail trims and lower-cases an email address. It returns an empty
// string when s is not a single bare address.
func SanitizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > 254 {
		return ""
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return ""
	}
	return s
}

// SanitizeURL returns the normalized form of an absolute http or https URL.
// Any other scheme (javascript:, data:, file:) or a missing host yields "".
func SanitizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ""
	}
	if u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u.String()
}

// SanitizePhone keeps the digits of a phone number and an optional leading
// "+". Numbers with fewer than 7 or more than 15 digits yield "".
func SanitizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	if strings.HasPrefix(s, "+") {
		b.WriteByte('+')
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			digits++
		}
	}
	if digits < 7 || digits > 15 {
		return ""
	}
	return b.String()
}

// SanitizeSearchQuery prepares free text for the product search. Markup is
// removed, only letters, digits, spaces, hyphens and apostrophes survive and
// the result is capped at MaxSearchQueryLength runes.
func SanitizeSearchQuery(q string) string {
	q = SanitizeText(q, 0)
	q = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '\'' {
			return r
		}
		return ' '
	}, q)
	q = strings.TrimSpace(whitespacePattern.ReplaceAllString(q, " "))
	return truncateRunes(q, MaxSearchQueryLength)
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxLen]))
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
