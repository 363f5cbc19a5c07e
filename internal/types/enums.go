package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ScenarioType is the collection scenario a call was classified into.
type ScenarioType string

const (
	ScenarioPTP         ScenarioType = "PTP"
	ScenarioRefuseToPay ScenarioType = "REFUSE_TO_PAY"
	ScenarioTPC         ScenarioType = "TPC"
	ScenarioUnknown     ScenarioType = "UNKNOWN"
)

// Scenarios lists every scenario in display order.
var Scenarios = []ScenarioType{ScenarioPTP, ScenarioRefuseToPay, ScenarioTPC, ScenarioUnknown}

func (s ScenarioType) Valid() bool {
	switch s {
	case ScenarioPTP, ScenarioRefuseToPay, ScenarioTPC, ScenarioUnknown:
		return true
	}
	return false
}

// Negotiable reports whether the negotiation section applies to the scenario.
func (s ScenarioType) Negotiable() bool {
	return s == ScenarioPTP || s == ScenarioRefuseToPay
}

// ParseScenarioType accepts the canonical names case-insensitively. An empty
// string yields UNKNOWN.
func ParseScenarioType(s string) (ScenarioType, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return ScenarioUnknown, nil
	}
	st := ScenarioType(v)
	if !st.Valid() {
		return ScenarioUnknown, fmt.Errorf("unknown scenario type %q", s)
	}
	return st, nil
}

// ComplianceStatus is the outcome of a yes/no compliance check.
type ComplianceStatus string

const (
	Compliant     ComplianceStatus = "COMPLIANT"
	NonCompliant  ComplianceStatus = "NON_COMPLIANT"
	NotApplicable ComplianceStatus = "NOT_APPLICABLE"
)

func (c ComplianceStatus) Valid() bool {
	switch c {
	case Compliant, NonCompliant, NotApplicable:
		return true
	}
	return false
}

func ParseComplianceStatus(s string) (ComplianceStatus, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return NotApplicable, nil
	}
	c := ComplianceStatus(v)
	if !c.Valid() {
		return NotApplicable, fmt.Errorf("unknown compliance status %q", s)
	}
	return c, nil
}

type CommitmentStrength string

const (
	CommitmentStrong CommitmentStrength = "strong"
	CommitmentMedium CommitmentStrength = "medium"
	CommitmentWeak   CommitmentStrength = "weak"
)

type RefusalType string

const (
	RefusalExplicit RefusalType = "explicit"
	RefusalImplicit RefusalType = "implicit"
)

// ScoreLevel is the three-step rubric grade. Its numeric value is what gets
// averaged; the zero value is non-compliant.
type ScoreLevel uint8

const (
	ScoreNonCompliant ScoreLevel = iota
	ScoreStandard
	ScoreStrong
)

// ScoreLevelOf maps 0, 0.5 and 1 onto a ScoreLevel. Anything else fails with
// *InvalidScoreLevel.
func ScoreLevelOf(v float64) (ScoreLevel, error) {
	switch v {
	case 0:
		return ScoreNonCompliant, nil
	case 0.5:
		return ScoreStandard, nil
	case 1:
		return ScoreStrong, nil
	}
	return ScoreNonCompliant, &InvalidScoreLevel{Value: strconv.FormatFloat(v, 'g', -1, 64)}
}

// Value returns 0, 0.5 or 1.
func (s ScoreLevel) Value() float64 {
	switch s {
	case ScoreStandard:
		return 0.5
	case ScoreStrong:
		return 1
	}
	return 0
}

func (s ScoreLevel) Valid() bool { return s <= ScoreStrong }

func (s ScoreLevel) String() string {
	return strconv.FormatFloat(s.Value(), 'g', -1, 64)
}

func (s ScoreLevel) MarshalJSON() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ScoreLevel) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	lvl, err := parseScoreLevel("", raw)
	if err != nil {
		return err
	}
	*s = lvl
	return nil
}

// parseScoreLevel accepts a JSON number or one of the strings "0", "0.5", "1".
// A missing value is non-compliant.
func parseScoreLevel(field string, raw any) (ScoreLevel, error) {
	switch v := raw.(type) {
	case nil:
		return ScoreNonCompliant, nil
	case float64:
		lvl, err := ScoreLevelOf(v)
		if err != nil {
			return lvl, &InvalidScoreLevel{Field: field, Value: strconv.FormatFloat(v, 'g', -1, 64)}
		}
		return lvl, nil
	case string:
		switch strings.TrimSpace(v) {
		case "0", "0.0":
			return ScoreNonCompliant, nil
		case "0.5", ".5":
			return ScoreStandard, nil
		case "1", "1.0":
			return ScoreStrong, nil
		}
		return ScoreNonCompliant, &InvalidScoreLevel{Field: field, Value: v}
	}
	return ScoreNonCompliant, &InvalidScoreLevel{Field: field, Value: fmt.Sprint(raw)}
}
