package evaluator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/perimetron/surface"
)

var _ Evaluator = (*sshEvaluator)(nil)

// sshEvaluator scores SSH endpoints by OpenSSH generation. SSH itself is
// an expected service; only dated server versions add risk.
type sshEvaluator struct{}

func (*sshEvaluator) Name() string { return "ssh" }

func (*sshEvaluator) AppliesTo(s *surface.Service) bool {
	return s.Port == 22 || productContains(s, "ssh")
}

var opensshMajor = regexp.MustCompile(`(?i)openssh[-/_ ]*v?([0-9]+)\.`)

func (*sshEvaluator) Evaluate(_ context.Context, s *surface.Service) (*surface.ServiceRisk, error) {
	major, isOpenSSH := opensshVersion(s)
	switch {
	case !isOpenSSH:
		return &surface.ServiceRisk{
			Score:   1,
			Message: fmt.Sprintf("SSH-Dienst mit unbekannter Server-Software auf Port %d", s.Port),
		}, nil
	case major >= 8:
		return &surface.ServiceRisk{
			Message: fmt.Sprintf("OpenSSH %d.x auf Port %d, aktueller Stand", major, s.Port),
		}, nil
	case major == 7:
		return &surface.ServiceRisk{
			Score:   1,
			Message: fmt.Sprintf("OpenSSH %d.x auf Port %d, ältere aber gepflegte Generation", major, s.Port),
		}, nil
	default:
		return &surface.ServiceRisk{
			Score:   2,
			Message: fmt.Sprintf("Veraltete OpenSSH-Version (%d.x) auf Port %d", major, s.Port),
			Recommendations: []string{
				"OpenSSH auf eine aktuelle Version anheben",
			},
		}, nil
	}
}

// opensshVersion extracts the OpenSSH major version from the product,
// version, or banner fields. The second return is false for non-OpenSSH
// servers.
func opensshVersion(s *surface.Service) (int, bool) {
	for _, src := range []string{s.Product + " " + s.Version, s.Banner} {
		if m := opensshMajor.FindStringSubmatch(src); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n, true
			}
		}
	}
	// Product says OpenSSH but no parsable version: treat as current
	// rather than inventing risk from missing data.
	if productContains(s, "openssh") {
		return 8, true
	}
	return 0, false
}
