// Package scoring reduces each QA section to a raw score in [0, 1].
package scoring

import (
	"math"

	"collection-qa-go/internal/types"
)

type Section string

const (
	Opening       Section = "opening"
	Communication Section = "communication"
	Negotiation   Section = "negotiation"
)

// Weights are the section weights of the rubric. They need not sum to 1; the
// remainder is reserved for compliance handling.
type Weights struct {
	Opening       float64 `yaml:"opening" json:"opening"`
	Communication float64 `yaml:"communication" json:"communication"`
	Negotiation   float64 `yaml:"negotiation" json:"negotiation"`
}

func DefaultWeights() Weights {
	return Weights{Opening: 0.06, Communication: 0.25, Negotiation: 0.40}
}

func (w Weights) Of(s Section) float64 {
	switch s {
	case Opening:
		return w.Opening
	case Communication:
		return w.Communication
	case Negotiation:
		return w.Negotiation
	}
	return 0
}

// Component keys reported in Result.Components.
const (
	ComponentGreeting             = "greeting"
	ComponentCustomerVerification = "customer_verification"
	ComponentVoiceTone            = "voice_tone"
	ComponentSpeakingPace         = "speaking_pace"
	ComponentLanguage             = "language"
	ComponentEffectiveness        = "effectiveness"
	ComponentSolutions            = "solutions"
	ComponentAttempts             = "attempts"
)

// Result is one section's score. Weighted uses the fixed section weight and is
// for reporting only; the authoritative total comes from the aggregator.
// Components holds the per-item values in [0, 1] that Raw averages.
type Result struct {
	Section    Section            `json:"section"`
	Applicable bool               `json:"applicable"`
	Raw        float64            `json:"raw"`
	Weighted   float64            `json:"weighted"`
	Components map[string]float64 `json:"components,omitempty"`
}

// Sections holds the three section results of one QA score.
type Sections struct {
	Opening       Result `json:"opening"`
	Communication Result `json:"communication"`
	Negotiation   Result `json:"negotiation"`
}

func (s Sections) All() []Result {
	return []Result{s.Opening, s.Communication, s.Negotiation}
}

// per-unit credit for solutions and attempts; five units saturate
const unitCredit = 0.2

func OpeningComponents(o types.OpeningScore) map[string]float64 {
	verified := 0.0
	if o.CustomerVerification == types.Compliant {
		verified = 1
	}
	return map[string]float64{
		ComponentGreeting:             o.Greeting.Value(),
		ComponentCustomerVerification: verified,
	}
}

func OpeningRaw(o types.OpeningScore) float64 {
	return meanOf(OpeningComponents(o))
}

func CommunicationComponents(c types.CommunicationScore) map[string]float64 {
	return map[string]float64{
		ComponentVoiceTone:    c.VoiceTone.Value(),
		ComponentSpeakingPace: c.SpeakingPace.Value(),
		ComponentLanguage:     c.LanguageEtiquette.Value(),
	}
}

func CommunicationRaw(c types.CommunicationScore) float64 {
	return meanOf(CommunicationComponents(c))
}

// NegotiationComponents returns nil when the section does not apply.
func NegotiationComponents(scenario types.ScenarioType, n *types.NegotiationScore) map[string]float64 {
	if n == nil || !scenario.Negotiable() {
		return nil
	}
	effectiveness := 0.0
	if n.CommitmentObtained {
		effectiveness = 1
	}
	return map[string]float64{
		ComponentEffectiveness: effectiveness,
		ComponentSolutions:     saturate(len(n.SolutionsOffered)),
		ComponentAttempts:      saturate(n.Attempts),
	}
}

// NegotiationRaw reports false when the section does not apply to the call.
func NegotiationRaw(scenario types.ScenarioType, n *types.NegotiationScore) (float64, bool) {
	c := NegotiationComponents(scenario, n)
	if c == nil {
		return 0, false
	}
	return meanOf(c), true
}

func saturate(n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Min(float64(n)*unitCredit, 1)
}

// Score computes all three sections of q.
func Score(q types.QAScore, w Weights) Sections {
	s := Sections{
		Opening:       section(Opening, OpeningComponents(q.Opening)),
		Communication: section(Communication, CommunicationComponents(q.Communication)),
		Negotiation:   section(Negotiation, NegotiationComponents(q.ScenarioType, q.Negotiation)),
	}
	s.Opening.Weighted = s.Opening.Raw * w.Opening
	s.Communication.Weighted = s.Communication.Raw * w.Communication
	if s.Negotiation.Applicable {
		s.Negotiation.Weighted = s.Negotiation.Raw * w.Negotiation
	}
	return s
}

func section(name Section, components map[string]float64) Result {
	r := Result{Section: name, Components: components}
	if components != nil {
		r.Applicable = true
		r.Raw = meanOf(components)
	}
	return r
}

func meanOf(components map[string]float64) float64 {
	if len(components) == 0 {
		return 0
	}
	var sum float64
	for _, v := range components {
		sum += v
	}
	return sum / float64(len(components))
}
