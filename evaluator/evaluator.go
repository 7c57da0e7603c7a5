// Package evaluator contains the risk evaluation engine: an ordered
// registry of per-service evaluators and the host-level aggregation that
// composes their results.
package evaluator

import (
	"context"

	"github.com/perimetron/surface"
)

// Evaluator scores one service.
//
// Evaluators are stateless and pure: they receive a Service and return a
// ServiceRisk; deduplication across evaluators happens centrally in the
// engine.
type Evaluator interface {
	// Name is a unique, stable name for the evaluator.
	Name() string
	// AppliesTo reports whether the evaluator has an opinion about the
	// service.
	AppliesTo(*surface.Service) bool
	// Evaluate produces the evaluator's result for the service.
	Evaluate(context.Context, *surface.Service) (*surface.ServiceRisk, error)
}

// Registry is the fixed evaluation order. Category evaluators are
// exclusive: the first one that applies wins. Additive evaluators run for
// every service on top of the category result.
type Registry struct {
	Category []Evaluator
	Additive []Evaluator
}

// DefaultRegistry returns the standard registration order.
func DefaultRegistry() *Registry {
	return &Registry{
		Category: []Evaluator{
			&rdpEvaluator{},
			&vncEvaluator{},
			&telnetEvaluator{},
			&databaseEvaluator{},
			&webEvaluator{},
			&sshEvaluator{},
			&mailEvaluator{},
			&genericEvaluator{},
		},
		Additive: []Evaluator{
			&cveEvaluator{},
			&versionEvaluator{},
		},
	}
}
