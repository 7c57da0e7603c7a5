package evaluator

import (
	"context"
	"fmt"

	"github.com/perimetron/surface"
)

var _ Evaluator = (*vncEvaluator)(nil)

type vncEvaluator struct{}

func (*vncEvaluator) Name() string { return "vnc" }

func (*vncEvaluator) AppliesTo(s *surface.Service) bool {
	return s.Port == 5900 || productContains(s, "vnc")
}

func (*vncEvaluator) Evaluate(_ context.Context, s *surface.Service) (*surface.ServiceRisk, error) {
	if isSecure(s) {
		return &surface.ServiceRisk{
			Message: fmt.Sprintf("VNC auf Port %d, Zugang abgesichert", s.Port),
		}, nil
	}
	return &surface.ServiceRisk{
		Score:    5,
		Critical: true,
		Message:  fmt.Sprintf("VNC offen aus dem Internet erreichbar (Port %d)", s.Port),
		CriticalPoints: []string{
			fmt.Sprintf("VNC offen aus dem Internet erreichbar (Port %d)", s.Port),
		},
		Recommendations: []string{
			"VNC nur über VPN oder SSH-Tunnel zugänglich machen",
		},
	}, nil
}
