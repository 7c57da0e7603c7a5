package evaluator

import (
	"context"
	"fmt"

	"github.com/perimetron/surface"
)

var _ Evaluator = (*webEvaluator)(nil)

// webPorts are plain-HTTP ports that warrant an encryption assessment.
var webPorts = map[int]struct{}{
	80:   {},
	8080: {},
	8081: {},
}

// webEvaluator warns about unencrypted web endpoints. Plain HTTP on port
// 80 is common enough (redirects, ACME) that the finding stays
// non-critical and is excluded from the critical roll-up.
type webEvaluator struct{}

func (*webEvaluator) Name() string { return "web" }

func (*webEvaluator) AppliesTo(s *surface.Service) bool {
	_, ok := webPorts[s.Port]
	return ok
}

func (*webEvaluator) Evaluate(_ context.Context, s *surface.Service) (*surface.ServiceRisk, error) {
	if s.SSL != nil || s.Encrypted {
		return &surface.ServiceRisk{
			Message: fmt.Sprintf("Webdienst auf Port %d mit TLS-Indikatoren", s.Port),
		}, nil
	}
	return &surface.ServiceRisk{
		Score:               1 + versionRisk(s),
		Message:             fmt.Sprintf("Unverschlüsselter Webdienst auf Port %d", s.Port),
		ExcludeFromCritical: true,
		Recommendations: []string{
			"Webdienste auf HTTPS umstellen und HTTP nur für Weiterleitungen verwenden",
		},
	}, nil
}
