package evaluator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"

	"github.com/perimetron/surface"
)

var _ Evaluator = (*versionEvaluator)(nil)

// versionEvaluator classifies known product versions: end-of-life,
// conspicuously old, dated, or current. It runs additively on every
// service with both a product and a version.
type versionEvaluator struct{}

func (*versionEvaluator) Name() string { return "version" }

func (*versionEvaluator) AppliesTo(s *surface.Service) bool {
	return s.Product != "" && s.Version != ""
}

// versionClass orders the classification outcomes.
type versionClass int

const (
	classNone versionClass = iota
	classCurrent
	classDated
	classSuspectYear
	classCritical
	classEOL
)

var classScores = [...]int{
	classNone:        0,
	classCurrent:     1,
	classDated:       2,
	classSuspectYear: 3,
	classCritical:    4,
	classEOL:         5,
}

func (*versionEvaluator) Evaluate(_ context.Context, s *surface.Service) (*surface.ServiceRisk, error) {
	class, ver := classify(s)
	label := strings.TrimSpace(s.Product + " " + ver)
	switch class {
	case classEOL:
		return &surface.ServiceRisk{
			Score:    classScores[class],
			Critical: true,
			Message:  fmt.Sprintf("%s ist End-of-Life", label),
			CriticalPoints: []string{
				fmt.Sprintf("%s ist End-of-Life (keine Sicherheitsupdates mehr)", label),
			},
			Recommendations: []string{
				fmt.Sprintf("%s auf eine unterstützte Version migrieren", s.Product),
			},
		}, nil
	case classCritical:
		return &surface.ServiceRisk{
			Score:    classScores[class],
			Critical: true,
			Message:  fmt.Sprintf("Auffällige Version (OSINT-Indiz): %s", label),
			CriticalPoints: []string{
				fmt.Sprintf("Auffällige Version (OSINT-Indiz): %s", label),
			},
			Recommendations: []string{
				fmt.Sprintf("%s zeitnah aktualisieren", s.Product),
			},
		}, nil
	case classSuspectYear:
		return &surface.ServiceRisk{
			Score:   classScores[class],
			Message: fmt.Sprintf("Versionsangabe deutet auf alten Stand hin: %s", label),
		}, nil
	case classDated:
		return &surface.ServiceRisk{
			Score:   classScores[class],
			Message: fmt.Sprintf("Ältere, noch unterstützte Version: %s", label),
			Recommendations: []string{
				fmt.Sprintf("%s bei Gelegenheit aktualisieren", s.Product),
			},
		}, nil
	case classCurrent:
		return &surface.ServiceRisk{
			Score:   classScores[class],
			Message: fmt.Sprintf("Aktuelle Version im Einsatz: %s", label),
		}, nil
	}
	return &surface.ServiceRisk{}, nil
}

// versionRisk is the risk surcharge other evaluators stack on top of
// their base score. Current versions carry no surcharge.
func versionRisk(s *surface.Service) int {
	if s.Product == "" || s.Version == "" {
		return 0
	}
	class, _ := classify(s)
	if class == classCurrent {
		return 0
	}
	return classScores[class]
}

var (
	numericVersion = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)+[0-9A-Za-z.\-]*`)
	versionYear    = regexp.MustCompile(`\b(19|20)[0-9]{2}\b`)
)

// classify determines the version class for a service and returns the
// version string used for display.
func classify(s *surface.Service) (versionClass, string) {
	prod := normalizeProduct(s.Product)
	ver := extractVersion(s, prod)
	co, known := cutoffs[prod]
	if !known {
		// Unknown product: a version string that embeds an old year is
		// the only usable signal. A bare year carries no dotted numeric,
		// so this check cannot wait for extractVersion to succeed.
		if m := versionYear.FindString(s.Version); m != "" {
			if y, err := strconv.Atoi(m); err == nil && y < 2020 {
				if ver == "" {
					ver = s.Version
				}
				return classSuspectYear, ver
			}
		}
		if ver == "" {
			return classNone, s.Version
		}
		return classNone, ver
	}
	if ver == "" {
		return classNone, s.Version
	}
	for _, pre := range co.EOL {
		if strings.HasPrefix(ver, pre) {
			return classEOL, ver
		}
	}
	sv, err := semver.NewVersion(strings.TrimRight(numericOnly(ver), "."))
	if err != nil {
		return classNone, ver
	}
	if cm, err := semver.NewVersion(co.CriticalMax); err == nil && !sv.GreaterThan(cm) {
		return classCritical, ver
	}
	if sm, err := semver.NewVersion(co.SecureMin); err == nil && sv.LessThan(sm) {
		return classDated, ver
	}
	return classCurrent, ver
}

// normalizeProduct lowercases and folds aliases ("httpd" -> "apache").
func normalizeProduct(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if a, ok := productAliases[p]; ok {
		return a
	}
	// Try the first token too: "apache httpd 2.4" style strings.
	if i := strings.IndexByte(p, ' '); i > 0 {
		if a, ok := productAliases[p[:i]]; ok {
			return a
		}
	}
	return p
}

// extractVersion finds the numeric version for classification. Patterns
// anchored on the product name in the banner win; the bare version field
// is the fallback. Leading protocol tokens ("1.1 200 OK") never match the
// anchored form, and the fallback requires a dotted numeric.
func extractVersion(s *surface.Service, prod string) string {
	if prod != "" && s.Banner != "" {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(prod) + `[-/_ ]{0,3}v?([0-9]+(?:\.[0-9]+)+[0-9A-Za-z.\-]*)`)
		if err == nil {
			if m := re.FindStringSubmatch(s.Banner); m != nil {
				return m[1]
			}
		}
	}
	return numericVersion.FindString(s.Version)
}

// numericOnly trims a version down to what semver can digest:
// "8.9p1" -> "8.9", "2.4.48-Ubuntu" -> "2.4.48".
func numericOnly(v string) string {
	re := regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)*`)
	return re.FindString(v)
}
