package actionable

import (
	"fmt"

	"collection-qa-go/internal/aggregator"
	"collection-qa-go/internal/scoring"
	"collection-qa-go/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// Findings is the coaching view of one evaluated call.
type Findings struct {
	Strengths        []string   `json:"strengths"`
	CriticalIssues   []string   `json:"critical_issues"`
	ImprovementAreas []string   `json:"improvement_areas"`
	Card             ActionCard `json:"action_card"`
}

// below this total a call is flagged as a critical issue
const lowScoreLine = 0.70

func Generate(q types.QAScore, v aggregator.Verdict) Findings {
	f := Findings{
		Strengths:        []string{},
		CriticalIssues:   []string{},
		ImprovementAreas: append([]string{}, q.ImprovementAreas...),
	}
	if q.Opening.Greeting == types.ScoreStrong {
		f.Strengths = append(f.Strengths, "Excellent greeting and introduction")
	}
	if q.Communication.VoiceTone == types.ScoreStrong {
		f.Strengths = append(f.Strengths, "Professional and empathetic voice tone")
	}
	if q.Communication.LanguageEtiquette == types.ScoreStrong {
		f.Strengths = append(f.Strengths, "Polite language throughout the call")
	}
	if q.Negotiation != nil && q.Negotiation.CommitmentObtained {
		f.Strengths = append(f.Strengths, "Obtained a payment commitment")
	}

	if q.Knockout.UnauthorizedDisclosure {
		f.CriticalIssues = append(f.CriticalIssues, "Unauthorized disclosure of debt information")
	}
	if q.Knockout.PTPCheating {
		f.CriticalIssues = append(f.CriticalIssues, "Fabricated or forced promise to pay")
	}
	for _, o := range q.Knockout.OtherViolations {
		f.CriticalIssues = append(f.CriticalIssues, "Violation: "+o)
	}
	if !v.KnockedOut() && v.TotalScore < lowScoreLine {
		f.CriticalIssues = append(f.CriticalIssues, fmt.Sprintf("Overall score below %.0f%%", lowScoreLine*100))
	}
	f.Card = card(v, f)
	return f
}

func card(v aggregator.Verdict, f Findings) ActionCard {
	switch {
	case v.KnockedOut():
		return ActionCard{
			Insight: fmt.Sprintf("Knockout: %s", v.KnockoutReasons[0]),
			Action:  "Escalate to QA lead; review compliance script with the agent",
			Impact:  "Call fails regardless of rubric score",
		}
	case v.Degraded:
		return ActionCard{
			Insight: "Score breakdown missing from extraction",
			Action:  "Re-run the analysis or review the call manually",
			Impact:  "Score is not reliable",
		}
	case v.Status == aggregator.Pass:
		return ActionCard{
			Insight: fmt.Sprintf("Passed with %.0f%%", v.TotalScore*100),
			Action:  "Share as a reference call",
			Impact:  "Reinforce good practice",
		}
	}
	weakest := weakestSection(v)
	action := "Coach on " + string(weakest)
	if len(f.ImprovementAreas) > 0 {
		action += ": " + f.ImprovementAreas[0]
	}
	return ActionCard{
		Insight: fmt.Sprintf("Scored %.0f%%, below the %.0f%% pass line", v.TotalScore*100, v.PassThreshold*100),
		Action:  action,
		Impact:  "Lift the call towards a passing score",
	}
}

func weakestSection(v aggregator.Verdict) scoring.Section {
	worst := v.Sections.Opening
	for _, r := range v.Sections.All() {
		if r.Applicable && r.Raw < worst.Raw {
			worst = r
		}
	}
	return worst.Section
}
