package evaluator

import (
	"context"
	"fmt"

	"github.com/perimetron/surface"
)

var _ Evaluator = (*mailEvaluator)(nil)

var mailPorts = map[int]struct{}{
	25:  {},
	110: {},
	143: {},
	465: {},
	587: {},
	993: {},
	995: {},
}

// implicitTLSPorts carry TLS from the first byte; they need no further
// encryption evidence.
var implicitTLSPorts = map[int]struct{}{
	465: {},
	993: {},
	995: {},
}

type mailEvaluator struct{}

func (*mailEvaluator) Name() string { return "mail" }

func (*mailEvaluator) AppliesTo(s *surface.Service) bool {
	_, ok := mailPorts[s.Port]
	return ok
}

func (*mailEvaluator) Evaluate(_ context.Context, s *surface.Service) (*surface.ServiceRisk, error) {
	if _, implicit := implicitTLSPorts[s.Port]; implicit || s.SSL != nil || s.Encrypted {
		return &surface.ServiceRisk{
			Message: fmt.Sprintf("Maildienst auf Port %d mit Transportverschlüsselung", s.Port),
		}, nil
	}
	return &surface.ServiceRisk{
		Score:   1 + versionRisk(s),
		Message: fmt.Sprintf("Maildienst ohne erkennbare Transportverschlüsselung (Port %d)", s.Port),
		Recommendations: []string{
			"STARTTLS erzwingen oder auf implizite TLS-Ports wechseln",
		},
	}, nil
}
