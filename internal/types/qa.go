package types

import "strconv"

// OpeningScore grades how the agent opened the call.
type OpeningScore struct {
	Greeting               ScoreLevel       `json:"greeting_score"`
	GreetingEvidence       string           `json:"greeting_evidence"`
	CustomerVerification   ComplianceStatus `json:"customer_name_verification"`
	VerificationEvidence   string           `json:"customer_verification_evidence"`
	MandatoryInfoDisclosed []string         `json:"mandatory_info_disclosed"`
}

// CommunicationScore grades three independent delivery axes.
type CommunicationScore struct {
	VoiceTone            ScoreLevel `json:"voice_tone_score"`
	VoiceToneEvidence    string     `json:"voice_tone_evidence"`
	SpeakingPace         ScoreLevel `json:"speaking_pace_score"`
	SpeakingPaceEvidence string     `json:"speaking_pace_evidence"`
	LanguageEtiquette    ScoreLevel `json:"language_etiquette_score"`
	LanguageEvidence     []string   `json:"language_evidence"`
}

// NegotiationScore only applies to PTP and REFUSE_TO_PAY calls.
type NegotiationScore struct {
	Attempts           int      `json:"negotiation_attempts"`
	SolutionsOffered   []string `json:"solutions_offered"`
	CommitmentObtained bool     `json:"payment_commitment_obtained"`
	Evidence           []string `json:"negotiation_evidence"`
}

// KnockoutViolation records immediate-fail conditions.
type KnockoutViolation struct {
	UnauthorizedDisclosure bool     `json:"unauthorized_disclosure"`
	DisclosureEvidence     string   `json:"disclosure_evidence"`
	PTPCheating            bool     `json:"ptp_cheating"`
	PTPCheatingEvidence    string   `json:"ptp_cheating_evidence"`
	OtherViolations        []string `json:"other_violations"`
}

// KnockedOut reports whether any violation was flagged.
func (k KnockoutViolation) KnockedOut() bool {
	return k.UnauthorizedDisclosure || k.PTPCheating || len(k.OtherViolations) > 0
}

// Reasons lists the violations as evidence, verbatim where evidence exists.
func (k KnockoutViolation) Reasons() []string {
	var out []string
	if k.UnauthorizedDisclosure {
		out = append(out, orDefault(k.DisclosureEvidence, "unauthorized disclosure"))
	}
	if k.PTPCheating {
		out = append(out, orDefault(k.PTPCheatingEvidence, "PTP cheating"))
	}
	out = append(out, k.OtherViolations...)
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ScoreBreakdown holds each section's weighted contribution to the total.
type ScoreBreakdown struct {
	Opening       float64 `json:"opening"`
	Communication float64 `json:"communication"`
	Negotiation   float64 `json:"negotiation"`
}

func (b ScoreBreakdown) Sum() float64 {
	return b.Opening + b.Communication + b.Negotiation
}

// QAScore is one call's rubric evaluation. Negotiation is nil when the
// section was not extracted. ScoreBreakdown is nil only when extraction did
// not produce one; the verdict engine treats that as a degraded result.
type QAScore struct {
	ScenarioType       ScenarioType       `json:"scenario_type"`
	Opening            OpeningScore       `json:"opening_score"`
	Communication      CommunicationScore `json:"communication_score"`
	Negotiation        *NegotiationScore  `json:"negotiation_score"`
	Knockout           KnockoutViolation  `json:"knockout_violations"`
	TotalScore         float64            `json:"total_score"`
	ScoreBreakdown     *ScoreBreakdown    `json:"score_breakdown"`
	ImprovementAreas   []string           `json:"improvement_areas"`
	EvidenceHighlights []string           `json:"evidence_highlights"`
}

// NewQAScore validates the rubric fields and starts from a zero breakdown.
// An empty scenario means UNKNOWN.
func NewQAScore(scenario ScenarioType, opening OpeningScore, comm CommunicationScore, negotiation *NegotiationScore, knockout KnockoutViolation) (QAScore, error) {
	if scenario == "" {
		scenario = ScenarioUnknown
	}
	q := QAScore{
		ScenarioType:   scenario,
		Opening:        opening,
		Communication:  comm,
		Negotiation:    negotiation,
		Knockout:       knockout,
		ScoreBreakdown: &ScoreBreakdown{},
	}
	if q.Opening.CustomerVerification == "" {
		q.Opening.CustomerVerification = NotApplicable
	}
	if err := q.Validate(); err != nil {
		return QAScore{}, err
	}
	return q, nil
}

// Validate checks enumerations, score levels and counts.
func (q QAScore) Validate() error {
	if !q.ScenarioType.Valid() {
		return violation("scenario_type", "unknown scenario type %q", q.ScenarioType)
	}
	levels := []struct {
		field string
		lvl   ScoreLevel
	}{
		{"opening_score.greeting_score", q.Opening.Greeting},
		{"communication_score.voice_tone_score", q.Communication.VoiceTone},
		{"communication_score.speaking_pace_score", q.Communication.SpeakingPace},
		{"communication_score.language_etiquette_score", q.Communication.LanguageEtiquette},
	}
	for _, l := range levels {
		if !l.lvl.Valid() {
			return &InvalidScoreLevel{Field: l.field, Value: "ordinal " + strconv.Itoa(int(l.lvl))}
		}
	}
	if !q.Opening.CustomerVerification.Valid() {
		return violation("opening_score.customer_name_verification", "unknown compliance status %q", q.Opening.CustomerVerification)
	}
	if q.Negotiation != nil && q.Negotiation.Attempts < 0 {
		return violation("negotiation_score.negotiation_attempts", "must be >= 0, got %d", q.Negotiation.Attempts)
	}
	if q.TotalScore < 0 || q.TotalScore > 1 {
		return violation("total_score", "must be within [0, 1], got %v", q.TotalScore)
	}
	return nil
}

// Scored returns a copy carrying the computed total and breakdown.
func (q QAScore) Scored(total float64, breakdown ScoreBreakdown) QAScore {
	q.TotalScore = total
	q.ScoreBreakdown = &breakdown
	return q
}
