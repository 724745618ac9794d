package source

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when canonicalizing export timestamps.
var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"02 Jan 2006",
	"02 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// FormatDate canonicalizes a timestamp from the many formats vendors emit
// into "2006-01-02 15:04". Unix epoch seconds (Slack "ts" values like
// "1234567890.000200") are recognized. Unparseable input is returned
// truncated rather than dropped; a mangled date is still more useful to
// the reviewer than none.
func FormatDate(s string) string {
	if s == "" {
		return "N/A"
	}
	s = strings.TrimSpace(s)

	if epoch, err := strconv.ParseFloat(s, 64); err == nil && epoch > 1e8 {
		return time.Unix(int64(epoch), 0).UTC().Format("2006-01-02 15:04")
	}

	trimmed := strings.TrimSuffix(strings.TrimSuffix(s, "+00:00"), "Z")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02 15:04")
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02 15:04")
		}
	}

	if len(s) > 20 {
		return s[:20]
	}
	return s
}

var (
	brRe    = regexp.MustCompile(`(?i)<br\s*/?>`)
	pOpenRe = regexp.MustCompile(`(?i)<p[^>]*>`)
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	nlRe    = regexp.MustCompile(`\n{3,}`)
	undRe   = regexp.MustCompile(`_+`)
)

// StripHTML removes tags and decodes entities from rich-text bodies.
// Paragraph and line-break tags become newlines so message structure
// survives into the report.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(s)
	s = brRe.ReplaceAllString(s, "\n")
	s = pOpenRe.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "</p>", "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = nlRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truncate limits text to max characters with an ellipsis.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// SafeFilename converts a name into a filesystem-safe token: alphanumerics,
// hyphens, and underscores, with spaces collapsed to single underscores.
func SafeFilename(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		case c == ' ':
			b.WriteRune('_')
		default:
			b.WriteRune('_')
		}
	}
	collapsed := undRe.ReplaceAllString(b.String(), "_")
	return strings.Trim(collapsed, "_")
}
