package surface

// VulnRef is a normalized vulnerability reference attached to a Service.
//
// Host records carry these in heterogeneous shapes (bare CVE id strings or
// maps with an id and a score); the parser converts all of them to this
// type exactly once at the ingestion boundary. A CVSS of 0 means the source
// did not provide a score.
type VulnRef struct {
	ID   string  `json:"id"`
	CVSS float64 `json:"cvss,omitempty"`
}

// Service is one observed (port, transport) on the asset.
type Service struct {
	Port      int    `json:"port"`
	Transport string `json:"transport,omitempty"`
	// Product and Version are the best-effort identification of the
	// listening software. Empty means unknown.
	Product string `json:"product,omitempty"`
	Version string `json:"version,omitempty"`
	// Banner is the raw banner as captured. It is kept only as an
	// extraction source and for the forensic sidecar; it must pass the
	// sanitizer before it can appear in rendered output.
	Banner string `json:"banner,omitempty"`

	// SSL and SSH hold the structured handshake material reported by the
	// lookup service, verbatim.
	SSL map[string]interface{} `json:"ssl_info,omitempty"`
	SSH map[string]interface{} `json:"ssh_info,omitempty"`

	// These flags are only set when the source explicitly asserts them.
	Encrypted    bool `json:"is_encrypted,omitempty"`
	RequiresAuth bool `json:"requires_auth,omitempty"`
	VPNProtected bool `json:"vpn_protected,omitempty"`
	Tunneled     bool `json:"tunneled,omitempty"`
	CertRequired bool `json:"cert_required,omitempty"`

	// Vulnerabilities is a set keyed by CVE id; duplicates are collapsed
	// on ingest, keeping the maximum CVSS seen.
	Vulnerabilities []VulnRef `json:"vulnerabilities,omitempty"`
	// CPEs are the platform enumeration strings the source associated
	// with this service.
	CPEs []string `json:"cpes,omitempty"`
}

// HasVulnerabilities reports whether any CVE references are attached.
func (s *Service) HasVulnerabilities() bool {
	return len(s.Vulnerabilities) != 0
}

// AddVulnRef records a vulnerability reference, collapsing duplicate ids
// and keeping the larger CVSS.
func (s *Service) AddVulnRef(ref VulnRef) {
	for i := range s.Vulnerabilities {
		if s.Vulnerabilities[i].ID == ref.ID {
			if ref.CVSS > s.Vulnerabilities[i].CVSS {
				s.Vulnerabilities[i].CVSS = ref.CVSS
			}
			return
		}
	}
	s.Vulnerabilities = append(s.Vulnerabilities, ref)
}
