package archive

import "strings"

// maxSlug bounds slug length so archive paths stay manageable.
const maxSlug = 50

// Slug derives a filesystem-safe identifier from a display name:
// lowercased, runs of non-alphanumerics collapsed to single underscores,
// trimmed, truncated. The empty result falls back to "unknown".
func Slug(name string) string {
	var b strings.Builder
	lastUnder := true // suppress a leading underscore
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnder = false
		default:
			if !lastUnder {
				b.WriteByte('_')
				lastUnder = true
			}
		}
	}
	s := strings.Trim(b.String(), "_")
	if len(s) > maxSlug {
		s = strings.Trim(s[:maxSlug], "_")
	}
	if s == "" {
		return "unknown"
	}
	return s
}
