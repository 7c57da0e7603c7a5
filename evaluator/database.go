package evaluator

import (
	"context"
	"fmt"

	"github.com/perimetron/surface"
)

var _ Evaluator = (*databaseEvaluator)(nil)

// databasePorts are the well-known listeners of common database engines.
var databasePorts = map[int]string{
	3306:  "MySQL",
	5432:  "PostgreSQL",
	27017: "MongoDB",
	6379:  "Redis",
	1433:  "MSSQL",
}

var databaseNames = []string{"mysql", "mariadb", "postgres", "mongo", "redis", "mssql", "sql server", "oracle db"}

type databaseEvaluator struct{}

func (*databaseEvaluator) Name() string { return "database" }

func (*databaseEvaluator) AppliesTo(s *surface.Service) bool {
	if _, ok := databasePorts[s.Port]; ok {
		return true
	}
	for _, n := range databaseNames {
		if productContains(s, n) {
			return true
		}
	}
	return false
}

func (*databaseEvaluator) Evaluate(_ context.Context, s *surface.Service) (*surface.ServiceRisk, error) {
	label := s.Product
	if label == "" {
		label = databasePorts[s.Port]
	}
	if label == "" {
		label = "Datenbank"
	}
	if isSecure(s) {
		return &surface.ServiceRisk{
			Message: fmt.Sprintf("%s auf Port %d, Zugang abgesichert", label, s.Port),
		}, nil
	}
	return &surface.ServiceRisk{
		Score:    4 + versionRisk(s),
		Critical: true,
		Message:  fmt.Sprintf("Datenbank %s offen erreichbar (Port %d)", label, s.Port),
		CriticalPoints: []string{
			fmt.Sprintf("Datenbank %s offen aus dem Internet erreichbar (Port %d)", label, s.Port),
		},
		Recommendations: []string{
			"Datenbankzugriff auf interne Netze beschränken und Transportverschlüsselung erzwingen",
		},
	}, nil
}
