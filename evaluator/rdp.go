package evaluator

import (
	"context"
	"fmt"

	"github.com/perimetron/surface"
)

var _ Evaluator = (*rdpEvaluator)(nil)

// rdpEvaluator flags exposed remote desktop services. An internet-facing
// RDP endpoint without VPN gating is an inherently critical finding.
type rdpEvaluator struct{}

func (*rdpEvaluator) Name() string { return "rdp" }

func (*rdpEvaluator) AppliesTo(s *surface.Service) bool {
	return s.Port == 3389 || productContains(s, "rdp")
}

func (*rdpEvaluator) Evaluate(_ context.Context, s *surface.Service) (*surface.ServiceRisk, error) {
	if isSecure(s) {
		return &surface.ServiceRisk{
			Message: fmt.Sprintf("RDP auf Port %d, Zugang abgesichert", s.Port),
		}, nil
	}
	return &surface.ServiceRisk{
		Score:    5,
		Critical: true,
		Message:  fmt.Sprintf("RDP offen aus dem Internet erreichbar (Port %d)", s.Port),
		CriticalPoints: []string{
			fmt.Sprintf("RDP offen aus dem Internet erreichbar (Port %d)", s.Port),
		},
		Recommendations: []string{
			"RDP-Zugang ausschließlich über VPN oder ein Gateway mit Zertifikatspflicht bereitstellen",
		},
	}, nil
}
