package insights

import (
	"math"
	"sort"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
)

// Weights of the activity performance score.
var activityWeights = []float64{0.25, 0.25, 0.2}

// ActivityStat aggregates the sessions of one activity type.
type ActivityStat struct {
	Activity    string   `json:"activity_type"`
	Sessions    int      `json:"sessions"`
	Focus       *float64 `json:"focus_score"`
	Clarity     *float64 `json:"mental_clarity"`
	Mood        *float64 `json:"mood_score"`
	Performance *float64 `json:"performance"`
}

// ActivityPatterns averages focus, clarity and mood per activity type.
// Performance weighs them 0.25, 0.25 and 0.2, renormalised over the
// measures present.
func ActivityPatterns(records []database.SessionRecord) []ActivityStat {
	activities, groups := groupBy(records, byString(func(r database.SessionRecord) string { return r.ActivityType }))

	out := make([]ActivityStat, 0, len(activities))
	for _, a := range activities {
		group := groups[a]
		focus := nanMean(column(group, func(r database.SessionRecord) float64 { return r.Focus }))
		clarity := nanMean(column(group, func(r database.SessionRecord) float64 { return r.Clarity }))
		mood := nanMean(column(group, func(r database.SessionRecord) float64 { return r.Mood }))

		out = append(out, ActivityStat{
			Activity:    a,
			Sessions:    len(group),
			Focus:       finiteOrNil(focus),
			Clarity:     finiteOrNil(clarity),
			Mood:        finiteOrNil(mood),
			Performance: finiteOrNil(weightedMean([]float64{focus, clarity, mood}, activityWeights)),
		})
	}
	return out
}

// OptimalTime describes the best sessions of one activity.
type OptimalTime struct {
	Hours      []int    `json:"hours"`
	AvgFocus   *float64 `json:"avg_focus"`
	AvgClarity *float64 `json:"avg_clarity"`
}

// OptimalActivityTime takes the three sessions of activity with the highest
// mean of focus and clarity. It returns nil when the activity has no
// sessions with both scores.
func OptimalActivityTime(records []database.SessionRecord, activity string) *OptimalTime {
	type scored struct {
		record database.SessionRecord
		score  float64
	}

	var candidates []scored
	for _, r := range records {
		if r.ActivityType != activity {
			continue
		}
		score := (r.Focus + r.Clarity) / 2
		if math.IsNaN(score) {
			continue
		}
		candidates = append(candidates, scored{record: r, score: score})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}

	best := &OptimalTime{Hours: []int{}}
	focus := make([]float64, len(candidates))
	clarity := make([]float64, len(candidates))
	for i, c := range candidates {
		if h, ok := ParseHour(c.record.TimeOfDay); ok {
			best.Hours = append(best.Hours, h)
		}
		focus[i] = c.record.Focus
		clarity[i] = c.record.Clarity
	}
	best.AvgFocus = finiteOrNil(nanMean(focus))
	best.AvgClarity = finiteOrNil(nanMean(clarity))
	return best
}
