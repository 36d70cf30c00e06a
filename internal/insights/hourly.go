package insights

import (
	"math"
	"sort"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
)

// DefaultPeakHours is the number of hours PeakHours reports by default.
const DefaultPeakHours = 3

// HourlyStat aggregates the sessions started in one hour of the day.
type HourlyStat struct {
	Hour        int      `json:"hour"`
	Sessions    int      `json:"sessions"`
	Focus       *float64 `json:"focus_score"`
	Clarity     *float64 `json:"mental_clarity"`
	Mood        *float64 `json:"mood_score"`
	Performance *float64 `json:"performance_score"`
}

// HourlyPerformance groups records by the hour of their time of day.
// Performance is 0.4 focus + 0.4 clarity + 0.2 mood and is undefined when
// any of the three is missing for the hour.
func HourlyPerformance(records []database.SessionRecord) []HourlyStat {
	hours, groups := groupBy(records, byHour)

	out := make([]HourlyStat, 0, len(hours))
	for _, h := range hours {
		group := groups[h]
		focus := nanMean(column(group, func(r database.SessionRecord) float64 { return r.Focus }))
		clarity := nanMean(column(group, func(r database.SessionRecord) float64 { return r.Clarity }))
		mood := nanMean(column(group, func(r database.SessionRecord) float64 { return r.Mood }))

		out = append(out, HourlyStat{
			Hour:        h,
			Sessions:    len(group),
			Focus:       finiteOrNil(focus),
			Clarity:     finiteOrNil(clarity),
			Mood:        finiteOrNil(mood),
			Performance: finiteOrNil(0.4*focus + 0.4*clarity + 0.2*mood),
		})
	}
	return out
}

// PeakHours returns up to n hours with the highest performance, best first.
// Hours without a defined performance are skipped; ties keep hour order.
func PeakHours(hourly []HourlyStat, n int) []int {
	if n <= 0 {
		n = DefaultPeakHours
	}

	ranked := make([]HourlyStat, 0, len(hourly))
	for _, h := range hourly {
		if h.Performance != nil && !math.IsNaN(*h.Performance) {
			ranked = append(ranked, h)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].Performance > *ranked[j].Performance
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]int, len(ranked))
	for i, h := range ranked {
		out[i] = h.Hour
	}
	return out
}
