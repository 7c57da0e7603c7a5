package surface

import (
	"fmt"
	"sort"
	"time"
)

// AssetSnapshot is the normalized, host-level view of a single IPv4 asset
// at one point in time.
//
// Snapshots are immutable once written to a store; mutation helpers exist
// for the parser, which owns the value until it is persisted.
type AssetSnapshot struct {
	IP        string   `json:"ip"`
	Hostnames []string `json:"hostnames,omitempty"`
	Domains   []string `json:"domains,omitempty"`
	Org       string   `json:"org,omitempty"`
	ISP       string   `json:"isp,omitempty"`
	OS        string   `json:"os,omitempty"`
	City      string   `json:"city,omitempty"`
	Country   string   `json:"country,omitempty"`

	// Services is ordered by ascending port after normalization.
	Services []Service `json:"services"`
	// OpenPorts is derived; it must equal the port multiset of Services.
	OpenPorts []int `json:"open_ports"`

	LastUpdate time.Time `json:"last_update"`
}

// Sort orders Services by ascending port, ties broken by transport.
func (s *AssetSnapshot) Sort() {
	sort.SliceStable(s.Services, func(i, j int) bool {
		a, b := &s.Services[i], &s.Services[j]
		if a.Port != b.Port {
			return a.Port < b.Port
		}
		return a.Transport < b.Transport
	})
}

// DerivePorts recomputes OpenPorts from Services.
func (s *AssetSnapshot) DerivePorts() {
	s.OpenPorts = s.OpenPorts[:0]
	for i := range s.Services {
		s.OpenPorts = append(s.OpenPorts, s.Services[i].Port)
	}
}

// ServiceOnPort returns the first service listening on the given port, or
// nil if none is recorded.
func (s *AssetSnapshot) ServiceOnPort(port int) *Service {
	for i := range s.Services {
		if s.Services[i].Port == port {
			return &s.Services[i]
		}
	}
	return nil
}

// Validate checks the snapshot invariants: ports in range and unique, and
// OpenPorts equal to the port list of Services.
func (s *AssetSnapshot) Validate() error {
	seen := make(map[int]struct{}, len(s.Services))
	for i := range s.Services {
		p := s.Services[i].Port
		if p < 1 || p > 65535 {
			return fmt.Errorf("snapshot %s: port %d out of range", s.IP, p)
		}
		if _, ok := seen[p]; ok {
			return fmt.Errorf("snapshot %s: duplicate port %d", s.IP, p)
		}
		seen[p] = struct{}{}
	}
	if len(s.OpenPorts) != len(s.Services) {
		return fmt.Errorf("snapshot %s: open_ports length %d != services length %d", s.IP, len(s.OpenPorts), len(s.Services))
	}
	for i, p := range s.OpenPorts {
		if s.Services[i].Port != p {
			return fmt.Errorf("snapshot %s: open_ports[%d] = %d, want %d", s.IP, i, p, s.Services[i].Port)
		}
	}
	return nil
}
