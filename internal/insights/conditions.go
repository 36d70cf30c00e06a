package insights

import (
	"math"
	"sort"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
)

const bestConditionSessions = 10

// Conditions summarises the circumstances of a user's best sessions.
type Conditions struct {
	Sessions       int      `json:"sessions"`
	SleepHours     *float64 `json:"sleep_hours"`
	HoursSinceMeal *float64 `json:"hours_since_meal"`
	ExerciseType   string   `json:"exercise_type,omitempty"`
	LastMealType   string   `json:"last_meal_type,omitempty"`
}

// BestConditions looks at the ten sessions with the highest focus, ties
// broken by clarity. Sessions without a focus score are ignored. It returns
// nil when no session qualifies.
func BestConditions(records []database.SessionRecord) *Conditions {
	ranked := make([]database.SessionRecord, 0, len(records))
	for _, r := range records {
		if !math.IsNaN(r.Focus) {
			ranked = append(ranked, r)
		}
	}
	if len(ranked) == 0 {
		return nil
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Focus != ranked[j].Focus {
			return ranked[i].Focus > ranked[j].Focus
		}
		ci, cj := ranked[i].Clarity, ranked[j].Clarity
		if math.IsNaN(cj) {
			return !math.IsNaN(ci)
		}
		return ci > cj
	})
	if len(ranked) > bestConditionSessions {
		ranked = ranked[:bestConditionSessions]
	}

	exercise := make([]string, len(ranked))
	meals := make([]string, len(ranked))
	for i, r := range ranked {
		exercise[i] = r.ExerciseType
		meals[i] = r.LastMealType
	}

	return &Conditions{
		Sessions:       len(ranked),
		SleepHours:     finiteOrNil(nanMean(column(ranked, func(r database.SessionRecord) float64 { return r.SleepHours }))),
		HoursSinceMeal: finiteOrNil(nanMean(column(ranked, func(r database.SessionRecord) float64 { return r.HoursSinceMeal }))),
		ExerciseType:   mode(exercise),
		LastMealType:   mode(meals),
	}
}
