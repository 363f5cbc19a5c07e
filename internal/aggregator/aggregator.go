package aggregator

import (
	"fmt"

	"collection-qa-go/internal/scoring"
	"collection-qa-go/internal/types"
)

type Status string

const (
	Pass             Status = "PASS"
	NeedsImprovement Status = "NEEDS_IMPROVEMENT"
	Fail             Status = "FAIL"
)

const DefaultPassThreshold = 0.85

// absorbs float error in weights written as decimals
const weightTolerance = 1e-9

// Config is passed in explicitly; the engine reads no process-wide state.
type Config struct {
	Weights       scoring.Weights
	PassThreshold float64
}

func DefaultConfig() Config {
	return Config{Weights: scoring.DefaultWeights(), PassThreshold: DefaultPassThreshold}
}

// Engine turns a QA score into a total and a verdict.
type Engine struct {
	cfg Config
}

func New(cfg Config) (*Engine, error) {
	w := cfg.Weights
	if w.Opening < 0 || w.Communication < 0 || w.Negotiation < 0 {
		return nil, fmt.Errorf("aggregator: negative section weight %+v", w)
	}
	if w.Opening+w.Communication+w.Negotiation > 1+weightTolerance {
		return nil, fmt.Errorf("aggregator: section weights sum to %v, more than 1", w.Opening+w.Communication+w.Negotiation)
	}
	if w.Opening+w.Communication <= 0 {
		return nil, fmt.Errorf("aggregator: opening and communication weights sum to zero")
	}
	if cfg.PassThreshold < 0 || cfg.PassThreshold > 1 {
		return nil, fmt.Errorf("aggregator: pass threshold %v outside [0, 1]", cfg.PassThreshold)
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Verdict is the outcome of one evaluation. Breakdown always sums to
// TotalScore. Degraded marks a QA score that arrived without a breakdown.
type Verdict struct {
	Scenario        types.ScenarioType   `json:"scenario_type"`
	Status          Status               `json:"verdict"`
	TotalScore      float64              `json:"total_score"`
	Breakdown       types.ScoreBreakdown `json:"score_breakdown"`
	KnockoutReasons []string             `json:"knockout_reasons,omitempty"`
	Degraded        bool                 `json:"degraded,omitempty"`
	Sections        scoring.Sections     `json:"sections"`
	PassThreshold   float64              `json:"pass_threshold"`
}

func (v Verdict) KnockedOut() bool { return len(v.KnockoutReasons) > 0 }

// Evaluate applies, in order: knockout, degraded breakdown, weighted total.
// A knocked-out call gets no section scores at all. When negotiation does not
// apply its weight leaves both numerator and denominator and the remaining
// weights are renormalised to sum to 1.
func (e *Engine) Evaluate(q types.QAScore) Verdict {
	v := Verdict{
		Scenario:      q.ScenarioType,
		PassThreshold: e.cfg.PassThreshold,
	}
	if q.Knockout.KnockedOut() {
		v.Status = Fail
		v.KnockoutReasons = q.Knockout.Reasons()
		return v
	}
	v.Sections = scoring.Score(q, e.cfg.Weights)
	if q.ScoreBreakdown == nil {
		v.Status = NeedsImprovement
		v.Degraded = true
		return v
	}

	w := e.cfg.Weights
	s := v.Sections
	if s.Negotiation.Applicable {
		v.Breakdown = types.ScoreBreakdown{
			Opening:       s.Opening.Raw * w.Opening,
			Communication: s.Communication.Raw * w.Communication,
			Negotiation:   s.Negotiation.Raw * w.Negotiation,
		}
	} else {
		denom := w.Opening + w.Communication
		v.Breakdown = types.ScoreBreakdown{
			Opening:       s.Opening.Raw * w.Opening / denom,
			Communication: s.Communication.Raw * w.Communication / denom,
		}
	}
	v.TotalScore = v.Breakdown.Sum()
	v.Status = NeedsImprovement
	if v.TotalScore >= e.cfg.PassThreshold {
		v.Status = Pass
	}
	return v
}

// Apply evaluates q and returns it carrying the computed total and breakdown.
func (e *Engine) Apply(q types.QAScore) (types.QAScore, Verdict) {
	v := e.Evaluate(q)
	return q.Scored(v.TotalScore, v.Breakdown), v
}
