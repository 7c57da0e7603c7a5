// Package cpe provides minimal handling of Common Platform Enumeration
// (CPE) names, as found in host records and NVD responses.
//
// Both the 2.3 formatted-string binding ("cpe:2.3:a:vendor:product:…")
// and the legacy URI binding ("cpe:/a:vendor:product:…") are accepted.
// Only the attributes the report pipeline consumes are exposed.
package cpe

import (
	"fmt"
	"strings"
)

// WFN is the subset of a well-formed CPE name used here.
type WFN struct {
	Part    string
	Vendor  string
	Product string
	Version string
}

// Unbind parses a CPE name in either binding.
func Unbind(s string) (WFN, error) {
	var w WFN
	switch {
	case strings.HasPrefix(s, "cpe:2.3:"):
		f := splitFS(strings.TrimPrefix(s, "cpe:2.3:"))
		if len(f) < 3 {
			return w, fmt.Errorf("cpe: short formatted string: %q", s)
		}
		w.Part = unquote(f[0])
		w.Vendor = unquote(f[1])
		w.Product = unquote(f[2])
		if len(f) > 3 {
			w.Version = unquote(f[3])
		}
	case strings.HasPrefix(s, "cpe:/"):
		f := strings.Split(strings.TrimPrefix(s, "cpe:/"), ":")
		if len(f) < 3 {
			return w, fmt.Errorf("cpe: short URI: %q", s)
		}
		w.Part = f[0]
		w.Vendor = f[1]
		w.Product = f[2]
		if len(f) > 3 {
			w.Version = f[3]
		}
	default:
		return w, fmt.Errorf("cpe: unrecognized binding: %q", s)
	}
	return w, nil
}

// splitFS splits a formatted string on unescaped colons.
func splitFS(s string) []string {
	var out []string
	var b strings.Builder
	esc := false
	for _, r := range s {
		switch {
		case esc:
			b.WriteRune(r)
			esc = false
		case r == '\\':
			b.WriteRune(r)
			esc = true
		case r == ':':
			out = append(out, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	out = append(out, b.String())
	return out
}

func unquote(s string) string {
	switch s {
	case "*", "-":
		return ""
	}
	s = strings.ReplaceAll(s, `\`, "")
	return s
}

// serviceLabels maps CPE product tokens to conservative service labels.
var serviceLabels = map[string]string{
	"openssh":              "SSH",
	"ssh":                  "SSH",
	"mysql":                "MySQL",
	"mariadb":              "MariaDB",
	"postgresql":           "PostgreSQL",
	"mongodb":              "MongoDB",
	"redis":                "Redis",
	"http_server":          "Apache",
	"httpd":                "Apache",
	"nginx":                "nginx",
	"iis":                  "IIS",
	"exchange_server":      "Exchange",
	"postfix":              "Postfix",
	"exim":                 "Exim",
	"dovecot":              "Dovecot",
	"vnc":                  "VNC",
	"realvnc":              "VNC",
	"remote_desktop":       "RDP",
	"terminal_server":      "RDP",
	"tomcat":               "Tomcat",
	"windows":              "Windows",
	"linux_kernel":         "Linux",
	"proftpd":              "FTP",
	"vsftpd":               "FTP",
	"bind":                 "DNS",
	"named":                "DNS",
	"openssl":              "OpenSSL",
	"php":                  "PHP",
	"wordpress":            "WordPress",
	"jenkins":              "Jenkins",
	"elasticsearch":        "Elasticsearch",
	"grafana":              "Grafana",
	"gitlab":               "GitLab",
	"confluence":           "Confluence",
	"microsoft_sql_server": "MSSQL",
}

// ServiceLabel derives a conservative, human-readable service label from
// the first usable CPE in the list. It reports false when no CPE yields a
// product token.
func ServiceLabel(cpes []string) (string, bool) {
	for _, s := range cpes {
		w, err := Unbind(s)
		if err != nil || w.Product == "" {
			continue
		}
		p := strings.ToLower(w.Product)
		if l, ok := serviceLabels[p]; ok {
			return l, true
		}
		// Title-case the product token: "apache_tomcat" -> "Apache Tomcat".
		parts := strings.Split(strings.ReplaceAll(p, "_", " "), " ")
		for i, t := range parts {
			if t == "" {
				continue
			}
			parts[i] = strings.ToUpper(t[:1]) + t[1:]
		}
		return strings.Join(parts, " "), true
	}
	return "", false
}
