package evaluator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/perimetron/surface"
)

var _ Evaluator = (*cveEvaluator)(nil)

// cveEvaluator scores a service by its attached CVE references. It runs
// additively on every service carrying at least one reference.
type cveEvaluator struct{}

func (*cveEvaluator) Name() string { return "cve" }

func (*cveEvaluator) AppliesTo(s *surface.Service) bool {
	return s.HasVulnerabilities()
}

// CVSS severity buckets.
const (
	cvssCritical = 9.0
	cvssHigh     = 7.0
	cvssMedium   = 4.0
)

func (*cveEvaluator) Evaluate(_ context.Context, s *surface.Service) (*surface.ServiceRisk, error) {
	var critical, high, medium, low int
	for _, ref := range s.Vulnerabilities {
		switch {
		case ref.CVSS >= cvssCritical:
			critical++
		case ref.CVSS >= cvssHigh:
			high++
		case ref.CVSS >= cvssMedium:
			medium++
		case ref.CVSS > 0:
			low++
		}
	}
	total := len(s.Vulnerabilities)

	score := 0
	switch {
	case critical >= 3:
		score = 5
	case critical >= 1:
		score = 4
	case high >= 2:
		score = 4
	case total >= 10:
		score = 3
	case total >= 5:
		score = 2
	case total >= 1:
		score = 1
	}

	r := &surface.ServiceRisk{
		Score:    score,
		Critical: score >= 4,
		Message:  fmt.Sprintf("%d bekannte CVEs für Dienst auf Port %d", total, s.Port),
	}
	if score == 0 {
		return r, nil
	}

	points := []string{
		fmt.Sprintf("%d bekannte CVEs für %s (Port %d)", total, serviceLabel(s), s.Port),
	}
	if critical > 0 {
		points = append(points, fmt.Sprintf("%d kritische CVEs (CVSS ≥ 9.0)", critical))
	}
	if high > 0 {
		points = append(points, fmt.Sprintf("%d hohe CVEs (CVSS 7.0–8.9)", high))
	}
	if medium > 0 {
		points = append(points, fmt.Sprintf("%d mittlere CVEs (CVSS 4.0–6.9)", medium))
	}
	if low > 0 {
		points = append(points, fmt.Sprintf("%d niedrige CVEs", low))
	}
	if line := yearDistribution(s.Vulnerabilities); line != "" {
		points = append(points, line)
	}
	if critical > 0 || high > 0 {
		if top := topCVE(s.Vulnerabilities); top != nil {
			points = append(points, fmt.Sprintf("Höchste Bewertung: %s (CVSS %.1f)", top.ID, top.CVSS))
		}
	}
	r.CriticalPoints = points
	r.Recommendations = []string{
		fmt.Sprintf("Bekannte Schwachstellen für %s prüfen und patchen", serviceLabel(s)),
	}
	return r, nil
}

func serviceLabel(s *surface.Service) string {
	if s.Product != "" {
		return s.Product
	}
	return fmt.Sprintf("Port %d", s.Port)
}

// yearDistribution summarizes the CVE years, most frequent first, capped
// at the top three years.
func yearDistribution(refs []surface.VulnRef) string {
	counts := make(map[string]int)
	for _, ref := range refs {
		parts := strings.SplitN(ref.ID, "-", 3)
		if len(parts) == 3 {
			counts[parts[1]]++
		}
	}
	if len(counts) == 0 {
		return ""
	}
	years := make([]string, 0, len(counts))
	for y := range counts {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool {
		if counts[years[i]] != counts[years[j]] {
			return counts[years[i]] > counts[years[j]]
		}
		return years[i] > years[j]
	})
	if len(years) > 3 {
		years = years[:3]
	}
	var b strings.Builder
	b.WriteString("CVE-Jahrgänge: ")
	for i, y := range years {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%d)", y, counts[y])
	}
	return b.String()
}

func topCVE(refs []surface.VulnRef) *surface.VulnRef {
	var top *surface.VulnRef
	for i := range refs {
		if top == nil || refs[i].CVSS > top.CVSS {
			top = &refs[i]
		}
	}
	return top
}
