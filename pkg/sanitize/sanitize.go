// Package sanitize cleans free-form scan text before it may appear in a
// rendered report or sidecar.
//
// All functions are idempotent: applying them twice yields the same
// string as applying them once.
package sanitize

import (
	"regexp"
	"strings"
)

const (
	// Placeholder replaces redacted key material.
	Placeholder = "[REDACTED]"

	// MaxProduct and MaxBanner are the rune limits applied by Product and
	// Banner.
	MaxProduct = 60
	MaxBanner  = 200
)

var (
	// keyMaterial matches base64-ish runs long enough to be SSH or TLS
	// key material.
	keyMaterial = regexp.MustCompile(`[A-Za-z0-9+/]{40,}=*`)
	// statusPrefix matches a leading SMTP/FTP-style status code token.
	statusPrefix = regexp.MustCompile(`^[0-9]{3}[ \-]`)
	mappedV6     = regexp.MustCompile(`::[fF]{4}:`)
)

// productLabels maps lowercase substrings to short, recognizable labels.
// First match wins; order is from most to least specific.
var productLabels = []struct{ match, label string }{
	{"openssh", "SSH"},
	{"microsoft-iis", "IIS"},
	{"internet information services", "IIS"},
	{"postfix", "Postfix"},
	{"exim", "Exim"},
	{"mariadb", "MariaDB"},
	{"mysql", "MySQL"},
	{"postgresql", "PostgreSQL"},
	{"mongodb", "MongoDB"},
	{"nginx", "nginx"},
	{"apache", "Apache"},
	{"remote desktop", "RDP"},
	{"vnc", "VNC"},
}

// Text applies the base sanitization: control characters stripped,
// whitespace collapsed, IPv4-mapped IPv6 prefixes removed, key material
// redacted.
//
// Redaction runs last. The earlier steps remove characters, and removal
// can join two short base64 runs into one long enough to match.
func Text(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	s = mappedV6.ReplaceAllString(s, "")
	s = keyMaterial.ReplaceAllString(s, Placeholder)
	return s
}

// Product sanitizes a product or version label. Known products collapse
// to a short label; everything else is Text plus truncation.
func Product(s string) string {
	s = Text(s)
	l := strings.ToLower(s)
	for _, pl := range productLabels {
		if strings.Contains(l, pl.match) {
			return pl.label
		}
	}
	return Truncate(s, MaxProduct)
}

// Banner sanitizes banner text: base sanitization, protocol status codes
// stripped off the front, truncation.
func Banner(s string) string {
	s = Text(s)
	// Strip repeatedly so the result is a fixed point.
	for {
		t := statusPrefix.ReplaceAllString(s, "")
		t = strings.TrimLeft(t, " ")
		if t == s {
			break
		}
		s = t
	}
	return Truncate(s, MaxBanner)
}

// Truncate limits s to max runes, ellipsized. The result, ellipsis
// included, never exceeds max runes.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max < 1 {
		return ""
	}
	return string(r[:max-1]) + "…"
}
