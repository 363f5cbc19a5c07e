package aggregator

import "collection-qa-go/internal/types"

// Insight summarises a batch of verdicts.
type Insight struct {
	Total             int                            `json:"total"`
	PassRate          float64                        `json:"pass_rate"`
	KnockoutRate      float64                        `json:"knockout_rate"`
	AverageByScenario map[types.ScenarioType]float64 `json:"average_by_scenario"`
	StatusCounts      map[Status]int                 `json:"status_counts"`
	ScenarioCounts    map[types.ScenarioType]int     `json:"scenario_counts"`
}

func Summarize(verdicts []Verdict) Insight {
	total := map[types.ScenarioType]int{}
	sums := map[types.ScenarioType]float64{}
	statuses := map[Status]int{}
	knocked := 0
	for _, v := range verdicts {
		total[v.Scenario]++
		sums[v.Scenario] += v.TotalScore
		statuses[v.Status]++
		if v.KnockedOut() {
			knocked++
		}
	}
	avg := map[types.ScenarioType]float64{}
	for k := range total {
		if total[k] > 0 {
			avg[k] = sums[k] / float64(total[k])
		} else {
			avg[k] = 0
		}
	}
	ins := Insight{
		Total:             len(verdicts),
		AverageByScenario: avg,
		StatusCounts:      statuses,
		ScenarioCounts:    total,
	}
	if n := len(verdicts); n > 0 {
		ins.PassRate = float64(statuses[Pass]) / float64(n)
		ins.KnockoutRate = float64(knocked) / float64(n)
	}
	return ins
}
