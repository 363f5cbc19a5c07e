package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// The wire shapes below mirror what the extraction service returns: every
// scenario detail is an independent nullable object and score levels may be
// numbers or strings. Decoding goes wire -> validate -> domain constructor.

type amountWire struct {
	Value    *float64 `json:"value" validate:"required,gte=0"`
	Currency string   `json:"currency"`
	Type     string   `json:"type"`
}

type basicInfoWire struct {
	AgentName            *string      `json:"agent_name"`
	CustomerName         *string      `json:"customer_name"`
	ScenarioType         string       `json:"scenario_type" validate:"omitempty,oneof=PTP REFUSE_TO_PAY TPC UNKNOWN"`
	ClassificationReason string       `json:"classification_reason"`
	CallDuration         *string      `json:"call_duration"`
	Amounts              []amountWire `json:"amounts_mentioned" validate:"dive"`
	PaymentDateMentioned *string      `json:"payment_date_mentioned"`
}

type ptpWire struct {
	PromisedDate        *string     `json:"promised_date"`
	PromisedAmount      *amountWire `json:"promised_amount" validate:"omitempty"`
	NegotiationAttempts *int        `json:"negotiation_attempts" validate:"omitempty,gte=0"`
	CommitmentStrength  string      `json:"commitment_strength" validate:"omitempty,oneof=strong medium weak"`
	CommitmentPhrases   []string    `json:"commitment_phrases"`
}

type refuseWire struct {
	Reason             *string  `json:"reason"`
	CustomerSituation  *string  `json:"customer_situation"`
	RefusalType        string   `json:"refusal_type" validate:"omitempty,oneof=explicit implicit"`
	SolutionsDiscussed []string `json:"solutions_discussed"`
}

type tpcWire struct {
	RelationshipToCustomer *string  `json:"relationship_to_customer"`
	MessageDelivered       *bool    `json:"message_delivered"`
	VerificationAttempt    bool     `json:"verification_attempt"`
	AlternativeContacts    []string `json:"alternative_contacts"`
}

type callDataWire struct {
	BasicInfo     *basicInfoWire `json:"basic_info" validate:"required"`
	PTPDetails    *ptpWire       `json:"ptp_details" validate:"omitempty"`
	RefuseDetails *refuseWire    `json:"refuse_details" validate:"omitempty"`
	TPCDetails    *tpcWire       `json:"tpc_details" validate:"omitempty"`
	CallSummary   *string        `json:"call_summary"`
}

type openingWire struct {
	GreetingScore                any        `json:"greeting_score"`
	GreetingEvidence             *string    `json:"greeting_evidence"`
	CustomerNameVerification     string     `json:"customer_name_verification" validate:"omitempty,oneof=COMPLIANT NON_COMPLIANT NOT_APPLICABLE"`
	CustomerVerificationEvidence *string    `json:"customer_verification_evidence"`
	MandatoryInfoDisclosed       stringList `json:"mandatory_info_disclosed"`
}

type communicationWire struct {
	VoiceToneScore         any        `json:"voice_tone_score"`
	VoiceToneEvidence      stringList `json:"voice_tone_evidence"`
	SpeakingPaceScore      any        `json:"speaking_pace_score"`
	SpeakingPaceEvidence   stringList `json:"speaking_pace_evidence"`
	LanguageEtiquetteScore any        `json:"language_etiquette_score"`
	LanguageEvidence       stringList `json:"language_evidence"`
}

type negotiationWire struct {
	NegotiationAttempts       *int       `json:"negotiation_attempts" validate:"omitempty,gte=0"`
	SolutionsOffered          stringList `json:"solutions_offered"`
	PaymentCommitmentObtained bool       `json:"payment_commitment_obtained"`
	NegotiationEvidence       stringList `json:"negotiation_evidence"`
}

type knockoutWire struct {
	UnauthorizedDisclosure bool       `json:"unauthorized_disclosure"`
	DisclosureEvidence     *string    `json:"disclosure_evidence"`
	PTPCheating            bool       `json:"ptp_cheating"`
	PTPCheatingEvidence    *string    `json:"ptp_cheating_evidence"`
	OtherViolations        stringList `json:"other_violations"`
}

type qaWire struct {
	ScenarioType       string             `json:"scenario_type" validate:"omitempty,oneof=PTP REFUSE_TO_PAY TPC UNKNOWN"`
	Opening            *openingWire       `json:"opening_score" validate:"omitempty"`
	Communication      *communicationWire `json:"communication_score" validate:"omitempty"`
	Negotiation        *negotiationWire   `json:"negotiation_score" validate:"omitempty"`
	Knockout           *knockoutWire      `json:"knockout_violations" validate:"omitempty"`
	ScoreBreakdown     map[string]float64 `json:"score_breakdown"`
	ImprovementAreas   stringList         `json:"improvement_areas"`
	EvidenceHighlights stringList         `json:"evidence_highlights"`
}

// stringList accepts a JSON string, a list of strings or null. Blank entries
// are dropped.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*l = compact([]string{one})
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = compact(many)
	return nil
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

var (
	validateOnce sync.Once
	wireValidate *validator.Validate
)

func wireValidator() *validator.Validate {
	validateOnce.Do(func() {
		wireValidate = validator.New()
		wireValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return wireValidate
}

// checkWire runs the struct-tag constraints and turns the first failure into a
// *SchemaViolation carrying the JSON field path.
func checkWire(v any) error {
	err := wireValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return violation("", "%v", err)
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	reason := fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return violation(field, "failed %s (got %v)", reason, fe.Value())
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (a amountWire) toAmount() Amount {
	cur := a.Currency
	if strings.TrimSpace(cur) == "" {
		cur = DefaultCurrency
	}
	var v float64
	if a.Value != nil {
		v = *a.Value
	}
	return Amount{Value: v, Currency: cur, Type: a.Type}
}

func amountToWire(a Amount) amountWire {
	v := a.Value
	return amountWire{Value: &v, Currency: a.Currency, Type: a.Type}
}

// DecodeCallData parses an extracted classification instance. Malformed JSON
// is returned as-is; contract breaches come back as *SchemaViolation.
func DecodeCallData(raw []byte) (CallData, error) {
	var w callDataWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return CallData{}, fmt.Errorf("decode call data: %w", err)
	}
	if w.BasicInfo != nil {
		w.BasicInfo.ScenarioType = strings.ToUpper(strings.TrimSpace(w.BasicInfo.ScenarioType))
	}
	if w.PTPDetails != nil {
		w.PTPDetails.CommitmentStrength = strings.ToLower(strings.TrimSpace(w.PTPDetails.CommitmentStrength))
	}
	if w.RefuseDetails != nil {
		w.RefuseDetails.RefusalType = strings.ToLower(strings.TrimSpace(w.RefuseDetails.RefusalType))
	}
	if err := checkWire(&w); err != nil {
		return CallData{}, err
	}
	return w.toCallData()
}

func (w callDataWire) toCallData() (CallData, error) {
	var populated []string
	var detail Detail
	if w.PTPDetails != nil {
		populated = append(populated, "ptp_details")
		d := PTPDetails{
			PromisedDate:        deref(w.PTPDetails.PromisedDate),
			NegotiationAttempts: w.PTPDetails.NegotiationAttempts,
			CommitmentStrength:  CommitmentStrength(w.PTPDetails.CommitmentStrength),
			CommitmentPhrases:   w.PTPDetails.CommitmentPhrases,
		}
		if w.PTPDetails.PromisedAmount != nil {
			a := w.PTPDetails.PromisedAmount.toAmount()
			d.PromisedAmount = &a
		}
		detail = d
	}
	if w.RefuseDetails != nil {
		populated = append(populated, "refuse_details")
		detail = RefuseDetails{
			Reason:             deref(w.RefuseDetails.Reason),
			CustomerSituation:  deref(w.RefuseDetails.CustomerSituation),
			RefusalType:        RefusalType(w.RefuseDetails.RefusalType),
			SolutionsDiscussed: w.RefuseDetails.SolutionsDiscussed,
		}
	}
	if w.TPCDetails != nil {
		populated = append(populated, "tpc_details")
		detail = TPCDetails{
			RelationshipToCustomer: deref(w.TPCDetails.RelationshipToCustomer),
			MessageDelivered:       w.TPCDetails.MessageDelivered,
			VerificationAttempted:  w.TPCDetails.VerificationAttempt,
			AlternativeContacts:    w.TPCDetails.AlternativeContacts,
		}
	}
	if len(populated) > 1 {
		return CallData{}, violation(strings.Join(populated, ","), "at most one scenario detail may be populated")
	}

	b := w.BasicInfo
	scenario := ScenarioType(b.ScenarioType)
	if scenario == "" {
		scenario = ScenarioUnknown
	}
	basic := BasicCallInfo{
		AgentName:            deref(b.AgentName),
		CustomerName:         deref(b.CustomerName),
		ScenarioType:         scenario,
		ClassificationReason: b.ClassificationReason,
		CallDuration:         deref(b.CallDuration),
		PaymentDateMentioned: deref(b.PaymentDateMentioned),
	}
	for _, a := range b.Amounts {
		basic.Amounts = append(basic.Amounts, a.toAmount())
	}
	return NewCallData(basic, detail, deref(w.CallSummary))
}

func (c CallData) MarshalJSON() ([]byte, error) {
	b := c.basic
	w := callDataWire{
		BasicInfo: &basicInfoWire{
			AgentName:            nullable(b.AgentName),
			CustomerName:         nullable(b.CustomerName),
			ScenarioType:         string(b.ScenarioType),
			ClassificationReason: b.ClassificationReason,
			CallDuration:         nullable(b.CallDuration),
			Amounts:              []amountWire{},
			PaymentDateMentioned: nullable(b.PaymentDateMentioned),
		},
		CallSummary: nullable(c.summary),
	}
	for _, a := range b.Amounts {
		w.BasicInfo.Amounts = append(w.BasicInfo.Amounts, amountToWire(a))
	}
	switch d := c.detail.(type) {
	case PTPDetails:
		p := &ptpWire{
			PromisedDate:        nullable(d.PromisedDate),
			NegotiationAttempts: d.NegotiationAttempts,
			CommitmentStrength:  string(d.CommitmentStrength),
			CommitmentPhrases:   nonNil(d.CommitmentPhrases),
		}
		if d.PromisedAmount != nil {
			a := amountToWire(*d.PromisedAmount)
			p.PromisedAmount = &a
		}
		w.PTPDetails = p
	case RefuseDetails:
		w.RefuseDetails = &refuseWire{
			Reason:             nullable(d.Reason),
			CustomerSituation:  nullable(d.CustomerSituation),
			RefusalType:        string(d.RefusalType),
			SolutionsDiscussed: nonNil(d.SolutionsDiscussed),
		}
	case TPCDetails:
		w.TPCDetails = &tpcWire{
			RelationshipToCustomer: nullable(d.RelationshipToCustomer),
			MessageDelivered:       d.MessageDelivered,
			VerificationAttempt:    d.VerificationAttempted,
			AlternativeContacts:    nonNil(d.AlternativeContacts),
		}
	}
	return json.Marshal(w)
}

func (c *CallData) UnmarshalJSON(b []byte) error {
	cd, err := DecodeCallData(b)
	if err != nil {
		return err
	}
	*c = cd
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// DecodeQAScore parses an extracted QA instance for a call already classified
// as scenario. The returned score is unscored: TotalScore is zero and
// ScoreBreakdown is nil when the instance carried no breakdown.
func DecodeQAScore(raw []byte, scenario ScenarioType) (QAScore, error) {
	var w qaWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return QAScore{}, fmt.Errorf("decode qa score: %w", err)
	}
	w.ScenarioType = strings.ToUpper(strings.TrimSpace(w.ScenarioType))
	if w.Opening != nil {
		w.Opening.CustomerNameVerification = strings.ToUpper(strings.TrimSpace(w.Opening.CustomerNameVerification))
	}
	if err := checkWire(&w); err != nil {
		return QAScore{}, err
	}
	if w.ScenarioType != "" && ScenarioType(w.ScenarioType) != scenario {
		return QAScore{}, violation("scenario_type", "got %s for a call classified as %s", w.ScenarioType, scenario)
	}

	q := QAScore{
		ScenarioType:       scenario,
		ImprovementAreas:   w.ImprovementAreas,
		EvidenceHighlights: w.EvidenceHighlights,
	}
	q.Opening.CustomerVerification = NotApplicable
	var err error
	if o := w.Opening; o != nil {
		if q.Opening.Greeting, err = parseScoreLevel("opening_score.greeting_score", o.GreetingScore); err != nil {
			return QAScore{}, err
		}
		q.Opening.GreetingEvidence = deref(o.GreetingEvidence)
		if o.CustomerNameVerification != "" {
			q.Opening.CustomerVerification = ComplianceStatus(o.CustomerNameVerification)
		}
		q.Opening.VerificationEvidence = deref(o.CustomerVerificationEvidence)
		q.Opening.MandatoryInfoDisclosed = o.MandatoryInfoDisclosed
	}
	if c := w.Communication; c != nil {
		if q.Communication.VoiceTone, err = parseScoreLevel("communication_score.voice_tone_score", c.VoiceToneScore); err != nil {
			return QAScore{}, err
		}
		if q.Communication.SpeakingPace, err = parseScoreLevel("communication_score.speaking_pace_score", c.SpeakingPaceScore); err != nil {
			return QAScore{}, err
		}
		if q.Communication.LanguageEtiquette, err = parseScoreLevel("communication_score.language_etiquette_score", c.LanguageEtiquetteScore); err != nil {
			return QAScore{}, err
		}
		q.Communication.VoiceToneEvidence = strings.Join(c.VoiceToneEvidence, "; ")
		q.Communication.SpeakingPaceEvidence = strings.Join(c.SpeakingPaceEvidence, "; ")
		q.Communication.LanguageEvidence = c.LanguageEvidence
	}
	if n := w.Negotiation; n != nil {
		ns := &NegotiationScore{
			SolutionsOffered:   n.SolutionsOffered,
			CommitmentObtained: n.PaymentCommitmentObtained,
			Evidence:           n.NegotiationEvidence,
		}
		if n.NegotiationAttempts != nil {
			ns.Attempts = *n.NegotiationAttempts
		}
		q.Negotiation = ns
	}
	if k := w.Knockout; k != nil {
		q.Knockout = KnockoutViolation{
			UnauthorizedDisclosure: k.UnauthorizedDisclosure,
			DisclosureEvidence:     deref(k.DisclosureEvidence),
			PTPCheating:            k.PTPCheating,
			PTPCheatingEvidence:    deref(k.PTPCheatingEvidence),
			OtherViolations:        k.OtherViolations,
		}
	}
	if len(w.ScoreBreakdown) > 0 {
		q.ScoreBreakdown = &ScoreBreakdown{
			Opening:       w.ScoreBreakdown["opening"],
			Communication: w.ScoreBreakdown["communication"],
			Negotiation:   w.ScoreBreakdown["negotiation"],
		}
	}
	if err := q.Validate(); err != nil {
		return QAScore{}, err
	}
	return q, nil
}
