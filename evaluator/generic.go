package evaluator

import (
	"context"
	"fmt"

	"github.com/perimetron/surface"
)

var _ Evaluator = (*genericEvaluator)(nil)

// genericEvaluator is the fallback for services no category evaluator
// claims. It only notes missing encryption evidence.
type genericEvaluator struct{}

func (*genericEvaluator) Name() string { return "generic" }

func (*genericEvaluator) AppliesTo(*surface.Service) bool { return true }

func (*genericEvaluator) Evaluate(_ context.Context, s *surface.Service) (*surface.ServiceRisk, error) {
	if isSecure(s) {
		return &surface.ServiceRisk{}, nil
	}
	return &surface.ServiceRisk{
		Score:   1,
		Message: fmt.Sprintf("Dienst auf Port %d ohne erkennbare Verschlüsselung", s.Port),
	}, nil
}
