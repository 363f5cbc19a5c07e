// Package confidence derives heuristic quality metrics for a classification.
// The numbers are rule based, not calibrated probabilities.
package confidence

import (
	"strings"

	"collection-qa-go/internal/types"
)

// Metrics are each within [0, 1].
type Metrics struct {
	ClassificationConfidence float64 `json:"classification_confidence"`
	InformationCompleteness  float64 `json:"information_completeness"`
	EvidenceStrength         float64 `json:"evidence_strength"`
}

const (
	reasonConfidence = 0.8
	ptpEvidence      = 0.9
	tpcEvidence      = 0.8
	refuseEvidence   = 0.8
)

// Estimate never fails; missing data contributes zero.
func Estimate(cd types.CallData) Metrics {
	basic := cd.Basic()
	m := Metrics{
		InformationCompleteness: float64(basic.PopulatedFields()) / float64(types.BasicCallInfoFields),
		EvidenceStrength:        evidenceStrength(cd),
	}
	if strings.TrimSpace(basic.ClassificationReason) != "" {
		m.ClassificationConfidence = reasonConfidence
	}
	return m
}

func evidenceStrength(cd types.CallData) float64 {
	switch cd.Scenario() {
	case types.ScenarioPTP:
		if d, ok := cd.PTP(); ok && d.PromisedDate != "" && d.PromisedAmount != nil {
			return ptpEvidence
		}
	case types.ScenarioTPC:
		if d, ok := cd.TPC(); ok && d.RelationshipToCustomer != "" {
			return tpcEvidence
		}
	case types.ScenarioRefuseToPay:
		if d, ok := cd.Refuse(); ok && d.Reason != "" {
			return refuseEvidence
		}
	}
	return 0
}
