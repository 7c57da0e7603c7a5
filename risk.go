package surface

import "fmt"

// RiskLevel is the aggregate risk grade for an asset.
type RiskLevel uint

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskNames = [...]string{
	RiskLow:      "LOW",
	RiskMedium:   "MEDIUM",
	RiskHigh:     "HIGH",
	RiskCritical: "CRITICAL",
}

func (r RiskLevel) String() string {
	if int(r) >= len(riskNames) {
		return fmt.Sprintf("RiskLevel(%d)", uint(r))
	}
	return riskNames[r]
}

// MarshalText implements encoding.TextMarshaler.
func (r RiskLevel) MarshalText() ([]byte, error) {
	if int(r) >= len(riskNames) {
		return nil, fmt.Errorf("invalid risk level %d", uint(r))
	}
	return []byte(riskNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RiskLevel) UnmarshalText(b []byte) error {
	for i, n := range riskNames {
		if n == string(b) {
			*r = RiskLevel(i)
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", string(b))
}

// ServiceRisk is the outcome of evaluating one Service.
//
// Evaluators are pure: each returns its own ServiceRisk and the engine
// merges them per service, then deduplicates across the host.
type ServiceRisk struct {
	// Score is a non-negative risk score; the per-service total is the
	// sum over all applicable evaluators.
	Score int `json:"risk_score"`
	// Message is a short, human-readable note. Empty means nothing to say.
	Message  string `json:"message,omitempty"`
	Critical bool   `json:"is_critical"`
	// CriticalPoints are localized findings deemed security-material.
	CriticalPoints  []string `json:"critical_points,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	// ExcludeFromCritical lets an evaluator veto the critical flag for a
	// service that another evaluator marked critical.
	ExcludeFromCritical bool `json:"should_exclude_from_critical,omitempty"`
}

// Merge folds another evaluator's result into r. Scores add, slices
// concatenate in evaluator registration order.
func (r *ServiceRisk) Merge(o *ServiceRisk) {
	if o == nil {
		return
	}
	r.Score += o.Score
	if o.Critical {
		r.Critical = true
	}
	if o.ExcludeFromCritical {
		r.ExcludeFromCritical = true
	}
	r.CriticalPoints = append(r.CriticalPoints, o.CriticalPoints...)
	r.Recommendations = append(r.Recommendations, o.Recommendations...)
}

// EvaluationResult is the host-level aggregation over every service.
type EvaluationResult struct {
	IP   string    `json:"ip"`
	Risk RiskLevel `json:"risk"`
	// ExposureScore summarizes the count and nature of insecure services
	// on a 1–5 scale.
	ExposureScore   int      `json:"exposure_score"`
	CriticalPoints  []string `json:"critical_points"`
	Recommendations []string `json:"recommendations"`
}
