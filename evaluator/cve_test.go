package evaluator

import (
	"context"
	"strings"
	"testing"

	"github.com/perimetron/surface"
)

func refs(scores ...float64) []surface.VulnRef {
	out := make([]surface.VulnRef, len(scores))
	for i, s := range scores {
		out[i] = surface.VulnRef{ID: "CVE-2021-0001", CVSS: s}
	}
	return out
}

func TestCVEEvaluatorScore(t *testing.T) {
	tt := []struct {
		Name     string
		Refs     []surface.VulnRef
		Score    int
		Critical bool
	}{
		{Name: "ThreeCritical", Refs: refs(9.8, 9.1, 9.0), Score: 5, Critical: true},
		{Name: "OneCritical", Refs: refs(9.8), Score: 4, Critical: true},
		{Name: "TwoHigh", Refs: refs(7.5, 8.1), Score: 4, Critical: true},
		{Name: "OneHigh", Refs: refs(7.5), Score: 1, Critical: false},
		{Name: "TenAny", Refs: refs(1, 1, 1, 1, 1, 1, 1, 1, 1, 1), Score: 3, Critical: false},
		{Name: "FiveAny", Refs: refs(1, 1, 1, 1, 1), Score: 2, Critical: false},
		{Name: "OneLow", Refs: refs(2.1), Score: 1, Critical: false},
	}
	ev := &cveEvaluator{}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			svc := &surface.Service{Port: 443, Product: "nginx", Vulnerabilities: tc.Refs}
			if !ev.AppliesTo(svc) {
				t.Fatal("should apply")
			}
			r, err := ev.Evaluate(context.Background(), svc)
			if err != nil {
				t.Fatal(err)
			}
			if r.Score != tc.Score || r.Critical != tc.Critical {
				t.Errorf("got score %d critical %v, want %d %v", r.Score, r.Critical, tc.Score, tc.Critical)
			}
		})
	}
}

func TestCVEEvaluatorPoints(t *testing.T) {
	svc := &surface.Service{
		Port:    3306,
		Product: "MySQL",
		Vulnerabilities: []surface.VulnRef{
			{ID: "CVE-2021-2144", CVSS: 9.8},
			{ID: "CVE-2021-2156", CVSS: 7.5},
			{ID: "CVE-2019-2805", CVSS: 4.3},
			{ID: "CVE-2019-2740", CVSS: 2.6},
		},
	}
	r, err := (&cveEvaluator{}).Evaluate(context.Background(), svc)
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(r.CriticalPoints, "\n")
	for _, want := range []string{
		"4 bekannte CVEs für MySQL (Port 3306)",
		"1 kritische CVEs (CVSS ≥ 9.0)",
		"1 hohe CVEs (CVSS 7.0–8.9)",
		"1 mittlere CVEs (CVSS 4.0–6.9)",
		"1 niedrige CVEs",
		"CVE-Jahrgänge: 2021 (2), 2019 (2)",
		"Höchste Bewertung: CVE-2021-2144 (CVSS 9.8)",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in:\n%s", want, joined)
		}
	}
}

func TestCVEEvaluatorNotApplicable(t *testing.T) {
	if (&cveEvaluator{}).AppliesTo(&surface.Service{Port: 443}) {
		t.Error("should not apply without references")
	}
}
