package insights

import (
	"math"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
)

// Summary is the headline view of a user's history.
type Summary struct {
	TotalSessions  int                 `json:"total_sessions"`
	AvgSleepHours  *float64            `json:"avg_sleep_hours"`
	AvgMoodScore   *float64            `json:"avg_mood_score"`
	BestMealType   string              `json:"best_meal_type,omitempty"`
	MetricAverages map[string]*float64 `json:"metric_averages"`
}

// Summarize counts sessions, averages sleep, mood and the key metrics, and
// picks the last meal type with the highest mean mood.
func Summarize(records []database.SessionRecord) Summary {
	s := Summary{
		TotalSessions:  len(records),
		AvgSleepHours:  finiteOrNil(nanMean(column(records, func(r database.SessionRecord) float64 { return r.SleepHours }))),
		AvgMoodScore:   finiteOrNil(nanMean(column(records, func(r database.SessionRecord) float64 { return r.Mood }))),
		MetricAverages: make(map[string]*float64, len(KeyMetrics)),
	}

	for _, m := range KeyMetrics {
		name := m
		s.MetricAverages[m] = finiteOrNil(nanMean(column(records, func(r database.SessionRecord) float64 {
			return metricValue(r, name)
		})))
	}

	meals, groups := groupBy(records, byString(func(r database.SessionRecord) string { return r.LastMealType }))
	bestMood := math.Inf(-1)
	for _, meal := range meals {
		mood := nanMean(column(groups[meal], func(r database.SessionRecord) float64 { return r.Mood }))
		if !math.IsNaN(mood) && mood > bestMood {
			s.BestMealType, bestMood = meal, mood
		}
	}

	return s
}

// Report bundles the insights shown on the dashboard's analysis page.
type Report struct {
	PeakHours       []int          `json:"peak_performance_hours"`
	Hourly          []HourlyStat   `json:"hourly"`
	Activities      []ActivityStat `json:"activities"`
	OptimalDeepWork *OptimalTime   `json:"optimal_deep_work_time"`
	OptimalCreative *OptimalTime   `json:"optimal_creative_time"`
	BestConditions  *Conditions    `json:"best_conditions"`
	Correlations    []Correlation  `json:"key_correlations"`
}

// Generate computes the full insight report for records.
func Generate(records []database.SessionRecord) Report {
	hourly := HourlyPerformance(records)
	correlations := KeyCorrelations(records)
	if correlations == nil {
		correlations = []Correlation{}
	}

	return Report{
		PeakHours:       PeakHours(hourly, DefaultPeakHours),
		Hourly:          hourly,
		Activities:      ActivityPatterns(records),
		OptimalDeepWork: OptimalActivityTime(records, "deep_work"),
		OptimalCreative: OptimalActivityTime(records, "creative"),
		BestConditions:  BestConditions(records),
		Correlations:    correlations,
	}
}
