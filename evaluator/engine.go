package evaluator

import (
	"context"
	"regexp"
	"runtime"
	"strings"

	"github.com/quay/zlog"
	"golang.org/x/sync/errgroup"

	"github.com/perimetron/surface"
	"github.com/perimetron/surface/pkg/sanitize"
)

// ServiceResult pairs a service with its composed risk.
type ServiceResult struct {
	Service *surface.Service
	Risk    surface.ServiceRisk
	Secure  bool
}

// Engine runs the registry against a snapshot and aggregates the results.
type Engine struct {
	reg     *Registry
	workers int
}

// NewEngine returns an Engine over the given registry. A nil registry
// selects DefaultRegistry.
func NewEngine(reg *Registry) *Engine {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Engine{
		reg:     reg,
		workers: runtime.GOMAXPROCS(0),
	}
}

// Evaluate scores every service and aggregates the host-level result.
// Services are evaluated independently on a worker pool; results are
// collected positionally, so the outcome is deterministic regardless of
// scheduling.
func (e *Engine) Evaluate(ctx context.Context, snap *surface.AssetSnapshot) (*surface.EvaluationResult, []ServiceResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "evaluator/Engine.Evaluate")

	results := make([]ServiceResult, len(snap.Services))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range snap.Services {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			svc := &snap.Services[i]
			results[i] = ServiceResult{
				Service: svc,
				Risk:    e.composeService(gctx, svc),
				Secure:  isSecure(svc),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	res := e.aggregate(ctx, snap, results)
	zlog.Info(ctx).
		Str("ip", snap.IP).
		Stringer("risk", res.Risk).
		Int("exposure", res.ExposureScore).
		Msg("evaluation complete")
	return res, results, nil
}

// composeService runs the registry for one service: the first applicable
// category evaluator, then every applicable additive one, merged in
// registration order. An evaluator error counts as a zero result.
func (e *Engine) composeService(ctx context.Context, svc *surface.Service) surface.ServiceRisk {
	var out surface.ServiceRisk
	var messages []string
	critical := false

	apply := func(ev Evaluator) {
		r, err := ev.Evaluate(ctx, svc)
		if err != nil {
			zlog.Warn(ctx).
				Err(err).
				Str("evaluator", ev.Name()).
				Int("port", svc.Port).
				Msg("evaluator failed, ignoring its result")
			return
		}
		if r == nil {
			return
		}
		out.Merge(r)
		if m := strings.TrimSpace(r.Message); m != "" {
			messages = append(messages, m)
		}
		// Later evaluators win: a critical flag can be vetoed only by an
		// exclusion set afterwards.
		if r.Critical {
			critical = true
		}
		if r.ExcludeFromCritical {
			critical = false
		}
	}

	for _, ev := range e.reg.Category {
		if ev.AppliesTo(svc) {
			apply(ev)
			break
		}
	}
	for _, ev := range e.reg.Additive {
		if ev.AppliesTo(svc) {
			apply(ev)
		}
	}

	out.Critical = critical
	out.Message = strings.Join(messages, "; ")
	return out
}

func (e *Engine) aggregate(ctx context.Context, snap *surface.AssetSnapshot, results []ServiceResult) *surface.EvaluationResult {
	res := &surface.EvaluationResult{
		IP:              snap.IP,
		CriticalPoints:  []string{},
		Recommendations: []string{},
	}

	var points, recs []string
	insecure := 0
	anyCritical := false
	for i := range results {
		r := &results[i]
		points = append(points, r.Risk.CriticalPoints...)
		recs = append(recs, r.Risk.Recommendations...)
		if !r.Secure {
			insecure++
		}
		if r.Risk.Critical {
			anyCritical = true
		}
	}
	res.CriticalPoints = dedupePoints(points)
	res.Recommendations = dedupeExact(recs)

	// Exposure: one level per four insecure services, with a boost for
	// broad, mostly-insecure surfaces.
	base := 1 + (insecure+3)/4
	boost := 0
	if len(snap.Services) >= 10 && insecure >= 7 {
		boost = 1
	}
	score := base + boost
	if score < 1 {
		score = 1
	}
	if score > 5 {
		score = 5
	}
	res.ExposureScore = score

	switch {
	case anyCritical || mentionsAdminService(res.CriticalPoints):
		res.Risk = surface.RiskCritical
	case score >= 4:
		res.Risk = surface.RiskHigh
	case score >= 3:
		res.Risk = surface.RiskMedium
	default:
		res.Risk = surface.RiskLow
	}
	return res
}

// adminKeywords mark services whose mere exposure is critical.
var adminKeywords = []string{"rdp", "vnc", "telnet"}

func mentionsAdminService(points []string) bool {
	for _, p := range points {
		l := strings.ToLower(p)
		for _, kw := range adminKeywords {
			if strings.Contains(l, kw) {
				return true
			}
		}
	}
	return false
}

// productToken extracts a canonical "product version" pair from a
// finding, for near-duplicate collapse.
var productToken = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_.+-]*)\s+v?([0-9][0-9.]*)`)

// dedupePoints sanitizes findings and collapses duplicates,
// order-preserving. Two findings naming the same product and version
// collapse even when their surrounding wording differs.
func dedupePoints(points []string) []string {
	out := make([]string, 0, len(points))
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		p = sanitize.Text(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		for _, m := range productToken.FindAllStringSubmatch(p, -1) {
			prod := strings.ToLower(m[1])
			// "Port 3306" and "CVSS 9.8" are locations and scores, not
			// products.
			if prod == "port" || prod == "ports" || prod == "cvss" {
				continue
			}
			key = prod + " " + m[2]
			break
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

func dedupeExact(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = sanitize.Text(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
