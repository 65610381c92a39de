package security

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxFilenameLength = 255

var (
	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)union\s+select`),
		regexp.MustCompile(`(?i)insert\s+into`),
		regexp.MustCompile(`(?i)delete\s+from`),
		regexp.MustCompile(`(?i)drop\s+table`),
		regexp.MustCompile(`(?i)update\s+\w+\s+set`),
		regexp.MustCompile(`(?i)\bexec(ute)?\s*\(`),
		regexp.MustCompile(`(?i)script\s*>`),
		regexp.MustCompile(`(?i)javascript\s*:`),
	}

	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*/?\s*(script|iframe|embed|object)[^>]*>`),
		regexp.MustCompile(`(?i)\bon\w+\s*=`),
		regexp.MustCompile(`(?i)javascript\s*:`),
	}

	xssDetectPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*script`),
		regexp.MustCompile(`(?i)<\s*iframe`),
		regexp.MustCompile(`(?i)<\s*embed`),
		regexp.MustCompile(`(?i)<\s*object`),
		regexp.MustCompile(`(?i)\bon\w+\s*=`),
		regexp.MustCompile(`(?i)javascript\s*:`),
	}

	htmlTagPattern     = regexp.MustCompile(`<[^>]*>`)
	htmlTagNamePattern = regexp.MustCompile(`<\s*(/?)\s*([a-zA-Z][a-zA-Z0-9]*)[^>]*>`)
	emailCharPattern   = regexp.MustCompile(`[^a-z0-9@._+-]`)
	phoneCharPattern   = regexp.MustCompile(`[^0-9+]`)

	allowedHTMLTags = map[string]bool{
		"b":      true,
		"i":      true,
		"em":     true,
		"strong": true,
		"p":      true,
		"br":     true,
		"span":   true,
	}
)

// SanitizeString removes null bytes and control characters (keeping
// newlines and tabs) and trims surrounding whitespace.
func SanitizeString(s string) string {
	return strings.TrimSpace(removeControlCharacters(s))
}

// SanitizeHTML escapes HTML special characters so the result is safe to
// render as text.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// SanitizeForSQL strips common SQL injection patterns. It is a defense
// layer for free-form text, not a substitute for parameterized queries.
func SanitizeForSQL(s string) string {
	for _, pattern := range sqlPatterns {
		s = pattern.ReplaceAllString(s, "")
	}
	return s
}

// SanitizeForXSS strips script-bearing tags, inline event handlers and
// javascript: URIs.
func SanitizeForXSS(s string) string {
	for _, pattern := range xssPatterns {
		s = pattern.ReplaceAllString(s, "")
	}
	return s
}

// SanitizeEmail lowercases, trims and removes characters that cannot
// appear in an email address.
func SanitizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return emailCharPattern.ReplaceAllString(s, "")
}

// SanitizePhone keeps digits and plus signs, dropping formatting.
func SanitizePhone(s string) string {
	return phoneCharPattern.ReplaceAllString(strings.TrimSpace(s), "")
}

// SanitizeAlphanumeric keeps only letters and digits.
func SanitizeAlphanumeric(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// SanitizeFilename removes path separators and traversal sequences,
// replaces unsafe characters with underscores and caps the length.
func SanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "\\", "")
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", "")
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, s)

	if len(s) > maxFilenameLength {
		s = s[:maxFilenameLength]
	}
	return s
}

// SanitizeURL returns the trimmed URL when it uses http or https and
// carries no javascript: payload, otherwise an empty string.
func SanitizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	if strings.Contains(lower, "javascript:") {
		return ""
	}
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ""
	}
	return s
}

// StripHTMLTags removes all HTML tags and comments, keeping their text
// content.
func StripHTMLTags(s string) string {
	return htmlTagPattern.ReplaceAllString(s, "")
}

// StripNonAllowedHTMLTags keeps a small whitelist of formatting tags
// (with attributes stripped) and removes everything else.
func StripNonAllowedHTMLTags(s string) string {
	return htmlTagNamePattern.ReplaceAllStringFunc(s, func(tag string) string {
		parts := htmlTagNamePattern.FindStringSubmatch(tag)
		if parts == nil {
			return ""
		}
		name := strings.ToLower(parts[2])
		if !allowedHTMLTags[name] {
			return ""
		}
		return "<" + parts[1] + name + ">"
	})
}

// TruncateString cuts the string to at most maxLength bytes, backing
// off to a valid rune boundary.
func TruncateString(s string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	if len(s) <= maxLength {
		return s
	}

	cut := s[:maxLength]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

// NormalizeWhitespace collapses runs of whitespace into single spaces
// and trims the ends.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ContainsSQLInjection reports whether the input carries common SQL
// injection patterns.
func ContainsSQLInjection(s string) bool {
	for _, pattern := range sqlPatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// ContainsXSS reports whether the input carries common XSS patterns.
func ContainsXSS(s string) bool {
	for _, pattern := range xssDetectPatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// SanitizeInput runs the full sanitization pipeline for untrusted
// free-form text: control characters, XSS, SQL patterns, HTML tags,
// whitespace and length.
func SanitizeInput(s string, maxLength int) string {
	s = SanitizeString(s)
	s = SanitizeForXSS(s)
	s = SanitizeForSQL(s)
	s = StripHTMLTags(s)
	s = NormalizeWhitespace(s)
	return TruncateString(s, maxLength)
}

// UserInput bundles the free-form fields accepted from callers.
type UserInput struct {
	Email       string
	Phone       string
	Name        string
	Description string
	URL         string
}

// Sanitize cleans every field in place.
func (u *UserInput) Sanitize() {
	u.Email = SanitizeEmail(u.Email)
	u.Phone = SanitizePhone(u.Phone)
	u.Name = SanitizeInput(u.Name, 100)
	u.Description = SanitizeInput(u.Description, 1000)
	u.URL = SanitizeURL(u.URL)
}
