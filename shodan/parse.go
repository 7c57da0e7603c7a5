// Package shodan turns raw host-lookup records into normalized snapshots
// and provides the lookup client.
package shodan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quay/zlog"

	"github.com/perimetron/surface"
)

// Parse decodes a raw host record and normalizes it into an
// AssetSnapshot.
//
// Parsing is tolerant: entries in the service list without a numeric port
// are dropped, and missing optional fields never cause an error. The only
// hard failure is undecodable JSON.
func Parse(ctx context.Context, raw []byte) (*surface.AssetSnapshot, error) {
	var rec map[string]interface{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("shodan: undecodable host record: %w", err)
	}
	return ParseRecord(ctx, rec), nil
}

// ParseRecord normalizes an already-decoded host record.
func ParseRecord(ctx context.Context, rec map[string]interface{}) *surface.AssetSnapshot {
	ctx = zlog.ContextWithValues(ctx, "component", "shodan/ParseRecord")
	snap := &surface.AssetSnapshot{
		IP:         asString(rec["ip_str"]),
		Hostnames:  asStrings(rec["hostnames"]),
		Domains:    asStrings(rec["domains"]),
		Org:        asString(rec["org"]),
		ISP:        asString(rec["isp"]),
		OS:         asString(rec["os"]),
		LastUpdate: time.Now().UTC(),
	}
	if loc, ok := rec["location"].(map[string]interface{}); ok {
		snap.City = asString(loc["city"])
		snap.Country = asString(loc["country_name"])
	}

	data, _ := rec["data"].([]interface{})
	dropped := 0
	for _, e := range data {
		entry, ok := e.(map[string]interface{})
		if !ok {
			dropped++
			continue
		}
		port, ok := asPort(entry["port"])
		if !ok {
			dropped++
			continue
		}
		svc := parseService(port, entry)
		if prev := snap.ServiceOnPort(port); prev != nil {
			mergeService(prev, svc)
			continue
		}
		snap.Services = append(snap.Services, *svc)
	}
	if dropped > 0 {
		zlog.Debug(ctx).
			Str("ip", snap.IP).
			Int("dropped", dropped).
			Msg("dropped service entries without usable port")
	}
	snap.Sort()
	snap.DerivePorts()
	return snap
}

func parseService(port int, entry map[string]interface{}) *surface.Service {
	svc := &surface.Service{
		Port:      port,
		Transport: asString(entry["transport"]),
		Product:   asString(entry["product"]),
		Version:   asString(entry["version"]),
	}
	banner := asString(entry["banner"])
	if banner == "" {
		banner = asString(entry["data"])
	}
	svc.Banner = banner
	if svc.Product == "" {
		svc.Product, svc.Version = extractProductVersion(banner)
	} else if svc.Version == "" {
		_, svc.Version = extractProductVersion(banner)
	}

	if m, ok := entry["ssl"].(map[string]interface{}); ok {
		svc.SSL = m
	}
	if m, ok := entry["ssh"].(map[string]interface{}); ok {
		svc.SSH = m
	}
	// Flags are taken only from explicit assertions in the record.
	svc.Encrypted = asBool(entry["is_encrypted"])
	svc.RequiresAuth = asBool(entry["requires_auth"])
	svc.VPNProtected = asBool(entry["vpn_protected"])
	svc.Tunneled = asBool(entry["tunneled"])
	svc.CertRequired = asBool(entry["cert_required"])

	for _, ref := range parseVulns(entry["vulns"]) {
		svc.AddVulnRef(ref)
	}
	svc.CPEs = asStrings(entry["cpes"])
	return svc
}

// mergeService folds a second record for the same port into the first.
// Overlapping sources report the same port more than once; the first
// record wins for scalar fields, sets union.
func mergeService(dst, src *surface.Service) {
	if dst.Product == "" {
		dst.Product = src.Product
	}
	if dst.Version == "" {
		dst.Version = src.Version
	}
	if dst.Banner == "" {
		dst.Banner = src.Banner
	}
	if dst.SSL == nil {
		dst.SSL = src.SSL
	}
	if dst.SSH == nil {
		dst.SSH = src.SSH
	}
	dst.Encrypted = dst.Encrypted || src.Encrypted
	dst.RequiresAuth = dst.RequiresAuth || src.RequiresAuth
	dst.VPNProtected = dst.VPNProtected || src.VPNProtected
	dst.Tunneled = dst.Tunneled || src.Tunneled
	dst.CertRequired = dst.CertRequired || src.CertRequired
	for _, ref := range src.Vulnerabilities {
		dst.AddVulnRef(ref)
	}
	for _, c := range src.CPEs {
		found := false
		for _, have := range dst.CPEs {
			if have == c {
				found = true
				break
			}
		}
		if !found {
			dst.CPEs = append(dst.CPEs, c)
		}
	}
}

// parseVulns normalizes the heterogeneous vulnerability shapes: an array
// of id strings, an array of {id, cvss} maps, or an object keyed by id.
func parseVulns(v interface{}) []surface.VulnRef {
	var out []surface.VulnRef
	add := func(id string, cvss float64) {
		id, ok := surface.CanonicalCVE(id)
		if !ok {
			return
		}
		out = append(out, surface.VulnRef{ID: id, CVSS: cvss})
	}
	switch vv := v.(type) {
	case []interface{}:
		for _, e := range vv {
			switch ee := e.(type) {
			case string:
				add(ee, 0)
			case map[string]interface{}:
				add(asString(ee["id"]), asFloat(ee["cvss"]))
			}
		}
	case map[string]interface{}:
		for id, e := range vv {
			var cvss float64
			if m, ok := e.(map[string]interface{}); ok {
				cvss = asFloat(m["cvss"])
			}
			add(id, cvss)
		}
	}
	return out
}

// extractProductVersion guesses a product and version from banner text.
// The precedence is "prod/ver", then "prod_ver", then a whitespace split.
// It never fails; unknowns stay empty.
func extractProductVersion(banner string) (product, version string) {
	b := strings.TrimSpace(banner)
	if b == "" {
		return "", ""
	}
	token := b
	if i := strings.IndexAny(b, " \t\r\n"); i > 0 {
		token = b[:i]
	}
	if i := strings.IndexByte(token, '/'); i > 0 && i < len(token)-1 {
		return token[:i], token[i+1:]
	}
	if i := strings.IndexByte(token, '_'); i > 0 && i < len(token)-1 {
		return token[:i], token[i+1:]
	}
	f := strings.Fields(b)
	switch len(f) {
	case 0:
		return "", ""
	case 1:
		return f[0], ""
	default:
		return f[0], f[1]
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asStrings(v interface{}) []string {
	a, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(a))
	for _, e := range a {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		var f float64
		fmt.Sscanf(n, "%g", &f)
		return f
	}
	return 0
}

func asPort(v interface{}) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		if n, isNum := v.(json.Number); isNum {
			var err error
			f, err = n.Float64()
			if err != nil {
				return 0, false
			}
			ok = true
		}
	}
	if !ok {
		return 0, false
	}
	p := int(f)
	if p < 1 || p > 65535 {
		return 0, false
	}
	return p, true
}
