package evaluator

import (
	"strings"

	"github.com/perimetron/surface"
)

// adminPorts are services where encryption alone is not enough; they must
// also be gated by a VPN, a tunnel, or client certificates.
var adminPorts = map[int]struct{}{
	22:   {},
	3389: {},
}

// isSecure is the central encryption check.
//
// A service is secure when the source asserts encryption (structured TLS
// material or an explicit flag), admin services are additionally gated,
// and the observed software version carries no risk. A version with a
// non-zero risk surcharge makes the service insecure regardless of
// transport security.
func isSecure(s *surface.Service) bool {
	if versionRisk(s) > 0 {
		return false
	}
	if s.SSL == nil && !s.Encrypted {
		return false
	}
	if _, admin := adminPorts[s.Port]; admin {
		if !s.VPNProtected && !s.Tunneled && !s.CertRequired {
			return false
		}
	}
	return true
}

func productContains(s *surface.Service, sub string) bool {
	return strings.Contains(strings.ToLower(s.Product), sub) ||
		strings.Contains(strings.ToLower(s.Banner), sub)
}
