package evaluator

import (
	"context"
	"fmt"

	"github.com/perimetron/surface"
)

var _ Evaluator = (*telnetEvaluator)(nil)

type telnetEvaluator struct{}

func (*telnetEvaluator) Name() string { return "telnet" }

func (*telnetEvaluator) AppliesTo(s *surface.Service) bool {
	return s.Port == 23 || productContains(s, "telnet")
}

func (*telnetEvaluator) Evaluate(_ context.Context, s *surface.Service) (*surface.ServiceRisk, error) {
	if isSecure(s) {
		return &surface.ServiceRisk{
			Message: fmt.Sprintf("Telnet auf Port %d, Zugang abgesichert", s.Port),
		}, nil
	}
	return &surface.ServiceRisk{
		Score:    4,
		Critical: true,
		Message:  fmt.Sprintf("Telnet unverschlüsselt erreichbar (Port %d)", s.Port),
		CriticalPoints: []string{
			fmt.Sprintf("Telnet unverschlüsselt erreichbar (Port %d)", s.Port),
		},
		Recommendations: []string{
			"Telnet abschalten und durch SSH ersetzen",
		},
	}, nil
}
