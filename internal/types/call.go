package types

import (
	"fmt"
	"strings"
)

const DefaultCurrency = "IDR"

// Amount is a monetary amount mentioned during a call.
type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
	Type     string  `json:"type"`
}

// NewAmount validates value >= 0 and defaults the currency to IDR.
func NewAmount(value float64, currency, kind string) (Amount, error) {
	if value < 0 {
		return Amount{}, violation("value", "must be >= 0, got %v", value)
	}
	if strings.TrimSpace(currency) == "" {
		currency = DefaultCurrency
	}
	return Amount{Value: value, Currency: currency, Type: kind}, nil
}

// BasicCallInfo holds the scenario-independent facts of a call. Empty strings
// stand for absent optional values.
type BasicCallInfo struct {
	AgentName            string
	CustomerName         string
	ScenarioType         ScenarioType
	ClassificationReason string
	CallDuration         string
	Amounts              []Amount
	PaymentDateMentioned string
}

// BasicCallInfoFields is the fixed number of fields in BasicCallInfo.
const BasicCallInfoFields = 7

// PopulatedFields counts fields that are set, non-empty and non-empty-list.
func (b BasicCallInfo) PopulatedFields() int {
	n := 0
	for _, s := range []string{b.AgentName, b.CustomerName, string(b.ScenarioType), b.ClassificationReason, b.CallDuration, b.PaymentDateMentioned} {
		if s != "" {
			n++
		}
	}
	if len(b.Amounts) > 0 {
		n++
	}
	return n
}

func (b BasicCallInfo) validate(prefix string) error {
	if !b.ScenarioType.Valid() {
		return violation(prefix+".scenario_type", "unknown scenario type %q", b.ScenarioType)
	}
	if b.ScenarioType != ScenarioUnknown && strings.TrimSpace(b.ClassificationReason) == "" {
		return violation(prefix+".classification_reason", "required when scenario_type is %s", b.ScenarioType)
	}
	for i, a := range b.Amounts {
		if a.Value < 0 {
			return violation(fmt.Sprintf("%s.amounts_mentioned[%d].value", prefix, i), "must be >= 0, got %v", a.Value)
		}
	}
	return nil
}

// Detail is the scenario-specific part of a CallData. Exactly one
// implementation exists per negotiable or third-party scenario; nil means no
// detail.
type Detail interface {
	Scenario() ScenarioType
	validate(prefix string) error
}

type PTPDetails struct {
	PromisedDate        string
	PromisedAmount      *Amount
	NegotiationAttempts *int
	CommitmentStrength  CommitmentStrength
	CommitmentPhrases   []string
}

func (PTPDetails) Scenario() ScenarioType { return ScenarioPTP }

func (d PTPDetails) validate(prefix string) error {
	if d.PromisedAmount != nil && d.PromisedAmount.Value < 0 {
		return violation(prefix+".promised_amount.value", "must be >= 0, got %v", d.PromisedAmount.Value)
	}
	if d.NegotiationAttempts != nil && *d.NegotiationAttempts < 0 {
		return violation(prefix+".negotiation_attempts", "must be >= 0, got %d", *d.NegotiationAttempts)
	}
	switch d.CommitmentStrength {
	case CommitmentStrong, CommitmentMedium, CommitmentWeak:
	default:
		return violation(prefix+".commitment_strength", "must be strong, medium or weak, got %q", d.CommitmentStrength)
	}
	return nil
}

type RefuseDetails struct {
	Reason             string
	CustomerSituation  string
	RefusalType        RefusalType
	SolutionsDiscussed []string
}

func (RefuseDetails) Scenario() ScenarioType { return ScenarioRefuseToPay }

func (d RefuseDetails) validate(prefix string) error {
	switch d.RefusalType {
	case RefusalExplicit, RefusalImplicit:
		return nil
	}
	return violation(prefix+".refusal_type", "must be explicit or implicit, got %q", d.RefusalType)
}

type TPCDetails struct {
	RelationshipToCustomer string
	MessageDelivered       *bool
	VerificationAttempted  bool
	AlternativeContacts    []string
}

func (TPCDetails) Scenario() ScenarioType { return ScenarioTPC }

func (TPCDetails) validate(string) error { return nil }

// CallData is a validated classification result. It can only be built with
// NewCallData, so the detail always matches the scenario.
type CallData struct {
	basic   BasicCallInfo
	detail  Detail
	summary string
}

// NewCallData checks every field contract and that detail is either nil or
// belongs to basic.ScenarioType. UNKNOWN admits no detail and is assumed
// when ScenarioType is empty.
func NewCallData(basic BasicCallInfo, detail Detail, summary string) (CallData, error) {
	if basic.ScenarioType == "" {
		basic.ScenarioType = ScenarioUnknown
	}
	if err := basic.validate("basic_info"); err != nil {
		return CallData{}, err
	}
	detail = withDefaults(detail)
	if detail != nil {
		field := detailField(detail.Scenario())
		if basic.ScenarioType == ScenarioUnknown {
			return CallData{}, violation(field, "no scenario detail allowed when scenario_type is UNKNOWN")
		}
		if detail.Scenario() != basic.ScenarioType {
			return CallData{}, violation(field, "detail for %s does not match scenario_type %s", detail.Scenario(), basic.ScenarioType)
		}
		if err := detail.validate(field); err != nil {
			return CallData{}, err
		}
	}
	basic.Amounts = normalizeAmounts(basic.Amounts)
	return CallData{basic: basic, detail: detail, summary: summary}, nil
}

func normalizeAmounts(in []Amount) []Amount {
	if len(in) == 0 {
		return nil
	}
	out := make([]Amount, len(in))
	for i, a := range in {
		if strings.TrimSpace(a.Currency) == "" {
			a.Currency = DefaultCurrency
		}
		out[i] = a
	}
	return out
}

func withDefaults(d Detail) Detail {
	switch v := d.(type) {
	case PTPDetails:
		if v.CommitmentStrength == "" {
			v.CommitmentStrength = CommitmentMedium
		}
		if v.PromisedAmount != nil {
			a := *v.PromisedAmount
			if strings.TrimSpace(a.Currency) == "" {
				a.Currency = DefaultCurrency
			}
			v.PromisedAmount = &a
		}
		v.CommitmentPhrases = append([]string(nil), v.CommitmentPhrases...)
		return v
	case *PTPDetails:
		if v == nil {
			return nil
		}
		return withDefaults(*v)
	case RefuseDetails:
		if v.RefusalType == "" {
			v.RefusalType = RefusalImplicit
		}
		v.SolutionsDiscussed = append([]string(nil), v.SolutionsDiscussed...)
		return v
	case *RefuseDetails:
		if v == nil {
			return nil
		}
		return withDefaults(*v)
	case TPCDetails:
		v.AlternativeContacts = append([]string(nil), v.AlternativeContacts...)
		return v
	case *TPCDetails:
		if v == nil {
			return nil
		}
		return withDefaults(*v)
	}
	return d
}

func detailField(s ScenarioType) string {
	switch s {
	case ScenarioPTP:
		return "ptp_details"
	case ScenarioRefuseToPay:
		return "refuse_details"
	case ScenarioTPC:
		return "tpc_details"
	}
	return "details"
}

func (c CallData) Basic() BasicCallInfo {
	b := c.basic
	b.Amounts = append([]Amount(nil), c.basic.Amounts...)
	return b
}

func (c CallData) Scenario() ScenarioType { return c.basic.ScenarioType }

// Detail returns nil when no scenario detail was extracted.
func (c CallData) Detail() Detail { return c.detail }

func (c CallData) Summary() string { return c.summary }

func (c CallData) PTP() (PTPDetails, bool) {
	d, ok := c.detail.(PTPDetails)
	return d, ok
}

func (c CallData) Refuse() (RefuseDetails, bool) {
	d, ok := c.detail.(RefuseDetails)
	return d, ok
}

func (c CallData) TPC() (TPCDetails, bool) {
	d, ok := c.detail.(TPCDetails)
	return d, ok
}
