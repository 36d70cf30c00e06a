package insights

import (
	"math"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
)

// RecommendationActivities are the activity types recommendations cover.
var RecommendationActivities = []string{"deep_work", "creative", "learning", "rest"}

// MealScore is the outcome score of a diet meal type.
type MealScore struct {
	MealType string  `json:"meal_type"`
	Score    float64 `json:"score"`
}

// Recommendation lists the conditions under which one activity went best.
type Recommendation struct {
	Activity       string      `json:"activity_type"`
	Sessions       int         `json:"sessions"`
	BestHour       *int        `json:"best_hour"`
	BestMealTypes  []MealScore `json:"best_meal_types"`
	BestSleepHours *float64    `json:"best_sleep_hours"`
	BestExercise   string      `json:"best_exercise,omitempty"`
}

// outcomeScore is the mean of the group means of focus, clarity and
// productivity, ignoring measures missing from the whole group.
func outcomeScore(group []database.SessionRecord) float64 {
	return nanMean([]float64{
		nanMean(column(group, func(r database.SessionRecord) float64 { return r.Focus })),
		nanMean(column(group, func(r database.SessionRecord) float64 { return r.Clarity })),
		nanMean(column(group, func(r database.SessionRecord) float64 { return r.Productivity })),
	})
}

// bestKey returns the key whose group has the highest outcome score. The
// first key in ascending order wins ties.
func bestKey[K int | float64 | string](keys []K, groups map[K][]database.SessionRecord) (K, bool) {
	var best K
	bestScore := math.Inf(-1)
	found := false
	for _, k := range keys {
		score := outcomeScore(groups[k])
		if math.IsNaN(score) {
			continue
		}
		if score > bestScore {
			best, bestScore, found = k, score, true
		}
	}
	return best, found
}

// Recommendations derives, for each activity with sessions, the best hour,
// the two best diet meal types, the best sleep duration and the best
// exercise by outcome score.
func Recommendations(records []database.SessionRecord) []Recommendation {
	out := make([]Recommendation, 0, len(RecommendationActivities))

	for _, activity := range RecommendationActivities {
		var group []database.SessionRecord
		for _, r := range records {
			if r.ActivityType == activity {
				group = append(group, r)
			}
		}
		if len(group) == 0 {
			continue
		}

		rec := Recommendation{Activity: activity, Sessions: len(group), BestMealTypes: []MealScore{}}

		if hours, groups := groupBy(group, byHour); len(hours) > 0 {
			if h, ok := bestKey(hours, groups); ok {
				rec.BestHour = &h
			}
		}

		meals, mealGroups := groupBy(group, byString(func(r database.SessionRecord) string { return r.DietMealType }))
		rec.BestMealTypes = topMeals(meals, mealGroups, 2)

		sleep, sleepGroups := groupBy(group, func(r database.SessionRecord) (float64, bool) {
			return r.SleepHours, !math.IsNaN(r.SleepHours)
		})
		if s, ok := bestKey(sleep, sleepGroups); ok {
			rec.BestSleepHours = &s
		}

		exercise, exerciseGroups := groupBy(group, byString(func(r database.SessionRecord) string { return r.ExerciseType }))
		if e, ok := bestKey(exercise, exerciseGroups); ok {
			rec.BestExercise = e
		}

		out = append(out, rec)
	}
	return out
}

func topMeals(keys []string, groups map[string][]database.SessionRecord, n int) []MealScore {
	scores := make([]MealScore, 0, len(keys))
	for _, k := range keys {
		if score := outcomeScore(groups[k]); !math.IsNaN(score) {
			scores = append(scores, MealScore{MealType: k, Score: score})
		}
	}
	// insertion sort keeps key order on ties
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j].Score > scores[j-1].Score; j-- {
			scores[j], scores[j-1] = scores[j-1], scores[j]
		}
	}
	if len(scores) > n {
		scores = scores[:n]
	}
	return scores
}
