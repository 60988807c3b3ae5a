package utils

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "plain text", "plain text"},
		{"simple tags", "<b>hello</b> world", "hello world"},
		{"script content dropped", "<script>alert(1)</script>safe", "safe"},
		{"style content dropped", "<style>body{color:red}</style>text", "text"},
		{"event handler attribute", `<img src=x onerror="alert(1)">caption`, "caption"},
		{"entities decoded", "a &amp; b", "a & b"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEscapeHTML(t *testing.T) {
	if got := EscapeHTML("<b>"); got != "&lt;b&gt;" {
		t.Errorf("EscapeHTML(<b>) = %q", got)
	}
	if got := EscapeHTML("Tom & Jerry"); got != "Tom &amp; Jerry" {
		t.Errorf("EscapeHTML(Tom & Jerry) = %q", got)
	}
	if got := EscapeHTML(`"quoted"`); strings.Contains(got, `"`) {
		t.Errorf("EscapeHTML left a double quote in %q", got)
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"markup and whitespace", "  <p>Hello\n\n   world</p> ", 0, "Hello world"},
		{"control characters removed", "abc\x00\x07def", 0, "abcdef"},
		{"truncated to max length", "abcdef", 3, "abc"},
		{"multibyte truncation", "بسم الله", 3, "بسم"},
		{"zero max length keeps everything", "abcdef", 0, "abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeText(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("SanitizeText(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestSanitizeSQLInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1'; DROP TABLE users; --", "1 TABLE users"},
		{"O'Brien", "OBrien"},
		{"selection of books", "selection of books"},
		{"a /* comment */ b", "a comment b"},
		{"UNION SELECT password", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeSQLInput(tt.input); got != tt.want {
				t.Errorf("SanitizeSQLInput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeNoSQLInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"$where", "where"},
		{`{"$ne": 1}`, `"ne": 1`},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeNoSQLInput(tt.input); got != tt.want {
				t.Errorf("SanitizeNoSQLInput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeObject(t *testing.T) {
	input := map[string]any{
		"name":   "<b>Ali</b>",
		"$where": "1 == 1",
		"a.b":    1.0,
		"tags":   []any{"<i>dates</i>", 2.0},
		"nested": map[string]any{"q": "  hi  "},
		"active": true,
	}

	want := map[string]any{
		"name":   "Ali",
		"tags":   []any{"dates", 2.0},
		"nested": map[string]any{"q": "hi"},
		"active": true,
	}

	got := SanitizeObject(input)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SanitizeObject() = %#v, want %#v", got, want)
	}

	// Input must not be modified
	if _, ok := input["$where"]; !ok {
		t.Error("SanitizeObject() modified its input")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		contains string // substring that should be in output
	}{
		{
			name:  "normal filename",
			input: "document.txt",
			want:  "document.txt",
		},
		{
			name:     "path traversal removed",
			input:    "../../../etc/passwd",
			contains: "passwd",
		},
		{
			name:  "windows path traversal removed",
			input: `..\..\windows\system.ini`,
			want:  "system.ini",
		},
		{
			name:  "quotes removed",
			input: `file"with"quotes.txt`,
			want:  "file_with_quotes.txt",
		},
		{
			name:  "newlines removed",
			input: "file\nwith\nnewlines.txt",
			want:  "file_with_newlines.txt",
		},
		{
			name:  "control chars removed",
			input: "file\x00\x01\x02.txt",
			want:  "file___.txt",
		},
		{
			name:  "empty string",
			input: "",
			want:  "download",
		},
		{
			name:  "only dots",
			input: "...",
			want:  "download",
		},
		{
			name:  "spaces preserved",
			input: "my document.txt",
			want:  "my document.txt",
		},
		{
			name:  "arabic letters preserved",
			input: "كتاب.pdf",
			want:  "كتاب.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeFilename(tt.input)

			if tt.want != "" && result != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, result, tt.want)
			}

			if tt.contains != "" && !strings.Contains(result, tt.contains) {
				t.Errorf("SanitizeFilename(%q) = %q, should contain %q", tt.input, result, tt.contains)
			}

			if len(result) > 255 {
				t.Errorf("SanitizeFilename(%q) length = %d, should be <= 255", tt.input, len(result))
			}
		})
	}
}

// TestSanitizeFilename_LongFilename tests that long filenames are truncated
func TestSanitizeFilename_LongFilename(t *testing.T) {
	longName := strings.Repeat("a", 300) + ".txt"
	result := SanitizeFilename(longName)

	if len(result) > 255 {
		t.Errorf("SanitizeFilename() should truncate to 255 chars, got %d", len(result))
	}
	if !strings.HasSuffix(result, ".txt") {
		t.Error("SanitizeFilename() should preserve extension when truncating")
	}

	multibyte := strings.Repeat("ك", 200) + ".pdf"
	result = SanitizeFilename(multibyte)
	if !utf8.ValidString(result) {
		t.Errorf("SanitizeFilename() split a multibyte rune: %q", result)
	}
}

func TestSanitizeEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{" Ali@Example.COM ", "ali@example.com"},
		{"not-an-email", ""},
		{"Ali <ali@example.com>", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeEmail(tt.input); got != tt.want {
				t.Errorf("SanitizeEmail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://example.com/path?q=1", "https://example.com/path?q=1"},
		{"HTTP://example.com", "http://example.com"},
		{"javascript:alert(1)", ""},
		{"data:text/html;base64,PHNjcmlwdD4=", ""},
		{"ftp://example.com/file", ""},
		{"/relative/path", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeURL(tt.input); got != tt.want {
				t.Errorf("SanitizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizePhone(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"+1 (555) 123-4567", "+15551234567"},
		{"555-1234", "5551234"},
		{"123", ""},
		{"+1234567890123456", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizePhone(tt.input); got != tt.want {
				t.Errorf("SanitizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeSearchQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"markup and punctuation", "<b>prayer</b> mat!!", "prayer mat"},
		{"apostrophes and hyphens kept", "O'Reilly hard-cover", "O'Reilly hard-cover"},
		{"operators removed", "quran $where {x}", "quran where x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeSearchQuery(tt.input); got != tt.want {
				t.Errorf("SanitizeSearchQuery(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	long := SanitizeSearchQuery(strings.Repeat("a", 150))
	if utf8.RuneCountInString(long) != MaxSearchQueryLength {
		t.Errorf("SanitizeSearchQuery() length = %d, want %d", utf8.RuneCountInString(long), MaxSearchQueryLength)
	}
}
