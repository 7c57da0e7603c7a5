// Package trend compares two asset snapshots month over month.
//
// The comparison is a pure function of its two inputs: running it twice
// over the same snapshots yields identical output.
package trend

import (
	"fmt"
	"strings"

	"github.com/perimetron/surface"
)

// The fixed report categories, in table order.
const (
	CategoryPorts    = "Öffentliche Ports"
	CategoryCritical = "Kritische Services"
	CategoryHighCVE  = "Hochrisiko-CVEs"
	CategoryTLS      = "TLS-Schwächen"
)

// Categories is the fixed row order of the trend table.
var Categories = []string{CategoryPorts, CategoryCritical, CategoryHighCVE, CategoryTLS}

// Row is one line of the trend table.
type Row struct {
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
	Rating   string `json:"rating"`
}

// Report is the fixed-schema comparison of two months.
type Report struct {
	Rows map[string]Row `json:"rows"`
	// Interpretation is a short, deterministic summary sentence.
	Interpretation string `json:"interpretation"`
	// HasPrevious is false when no earlier snapshot existed; ratings are
	// then marked as a first survey.
	HasPrevious bool `json:"has_previous"`
}

// Compare builds the trend report. prev may be nil.
func Compare(prev, cur *surface.AssetSnapshot) *Report {
	r := &Report{
		Rows:        make(map[string]Row, len(Categories)),
		HasPrevious: prev != nil,
	}
	for _, cat := range Categories {
		p, c := 0, derive(cat, cur)
		if prev != nil {
			p = derive(cat, prev)
		}
		r.Rows[cat] = Row{
			Previous: p,
			Current:  c,
			Rating:   rate(cat, c-p, prev != nil),
		}
	}
	r.Interpretation = interpret(r)
	return r
}

// derive computes a category's count from one snapshot.
func derive(category string, snap *surface.AssetSnapshot) int {
	if snap == nil {
		return 0
	}
	switch category {
	case CategoryPorts:
		return len(snap.OpenPorts)
	case CategoryCritical:
		n := 0
		for i := range snap.Services {
			if isAdminService(&snap.Services[i]) {
				n++
			}
		}
		return n
	case CategoryHighCVE:
		ids := make(map[string]struct{})
		for i := range snap.Services {
			for _, ref := range snap.Services[i].Vulnerabilities {
				if ref.CVSS >= 7.0 {
					ids[ref.ID] = struct{}{}
				}
			}
		}
		return len(ids)
	case CategoryTLS:
		n := 0
		for i := range snap.Services {
			svc := &snap.Services[i]
			if _, ok := tlsPorts[svc.Port]; ok && svc.SSL == nil {
				n++
			}
		}
		return n
	}
	return 0
}

// tlsPorts are ports where TLS material is expected; its absence counts
// as a weakness indicator.
var tlsPorts = map[int]struct{}{
	443:  {},
	465:  {},
	993:  {},
	995:  {},
	8443: {},
}

func isAdminService(s *surface.Service) bool {
	switch s.Port {
	case 23, 3389, 5900:
		return true
	}
	p := strings.ToLower(s.Product + " " + s.Banner)
	return strings.Contains(p, "rdp") || strings.Contains(p, "vnc") || strings.Contains(p, "telnet")
}

// rate maps a delta onto the fixed rating vocabulary. All categories are
// direction-sensitive the same way: more is worse.
func rate(category string, delta int, hasPrev bool) string {
	if !hasPrev {
		return "erstmalige Erhebung"
	}
	switch {
	case delta == 0:
		if category == CategoryPorts {
			return "stabil"
		}
		return "unverändert"
	case delta == 1:
		return "leicht verschlechtert"
	case delta == -1:
		return "leicht verbessert"
	case delta >= 2:
		return "deutlich verschlechtert"
	default:
		return "deutlich verbessert"
	}
}

// interpret renders the one-line summary from the table.
func interpret(r *Report) string {
	if !r.HasPrevious {
		return "Erste Erhebung für dieses Asset, noch kein Monatsvergleich möglich."
	}
	worse, better := 0, 0
	for _, cat := range Categories {
		d := r.Rows[cat].Current - r.Rows[cat].Previous
		switch {
		case d > 0:
			worse++
		case d < 0:
			better++
		}
	}
	switch {
	case worse == 0 && better == 0:
		return "Die Angriffsfläche ist gegenüber dem Vormonat unverändert."
	case worse > better:
		return fmt.Sprintf("Die Angriffsfläche hat sich in %d von %d Kategorien verschlechtert.", worse, len(Categories))
	case better > worse:
		return fmt.Sprintf("Die Angriffsfläche hat sich in %d von %d Kategorien verbessert.", better, len(Categories))
	default:
		return "Die Angriffsfläche zeigt ein gemischtes Bild gegenüber dem Vormonat."
	}
}
