package seed

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
)

// activityHours maps activities to the hours they are usually done at.
// Hours not listed are "other".
var activityHours = []struct {
	activity string
	hours    []int
}{
	{"deep_work", []int{9, 14, 16}},
	{"creative", []int{10, 15}},
	{"learning", []int{11, 19}},
	{"rest", []int{13, 17}},
}

var mealHours = []struct {
	meal  string
	hours []int
	types []string
	kcal  [2]int
}{
	{"breakfast", []int{7, 8, 9}, []string{"balanced", "high-protein"}, [2]int{300, 600}},
	{"lunch", []int{12, 13}, []string{"balanced", "high-carb"}, [2]int{500, 800}},
	{"dinner", []int{18, 19, 20}, []string{"balanced", "high-protein"}, [2]int{600, 900}},
	{"snack", []int{10, 15, 16}, []string{"light"}, [2]int{100, 300}},
}

var moods = map[string][]string{
	"deep_work": {"focused", "determined", "productive"},
	"creative":  {"inspired", "energetic", "excited"},
	"learning":  {"curious", "engaged", "motivated"},
	"rest":      {"relaxed", "calm", "peaceful"},
	"other":     {"neutral", "balanced", "content"},
}

var exercises = []string{"cardio", "strength", "yoga", "none"}

// Generator produces synthetic sessions from a seeded source.
type Generator struct {
	opts Options
	rng  *rand.Rand
}

// NewGenerator seeds a generator. Two generators with equal options
// produce the same sequence.
func NewGenerator(opts Options) *Generator {
	return &Generator{opts: opts, rng: rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))}
}

// intn returns a uniform int in [lo, hi].
func (g *Generator) intn(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *Generator) pick(options []string) string {
	return options[g.rng.IntN(len(options))]
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// Sessions generates a user's sessions in timestamp order.
func (g *Generator) Sessions(userID string) []database.SessionInput {
	n := g.intn(g.opts.MinSessions, g.opts.MaxSessions)
	days := int(g.opts.End.Sub(g.opts.Start).Hours() / 24)

	times := make([]time.Time, n)
	for i := range times {
		day := g.opts.Start.AddDate(0, 0, g.intn(0, days))
		times[i] = time.Date(day.Year(), day.Month(), day.Day(),
			g.intn(6, 22), g.intn(0, 59), g.intn(0, 59), 0, time.UTC)
	}
	slices.SortFunc(times, time.Time.Compare)

	out := make([]database.SessionInput, n)
	for i, ts := range times {
		out[i] = g.Session(userID, ts, i+1)
	}
	return out
}

// Session generates one session whose self-reports follow the activity
// usually done at that hour.
func (g *Generator) Session(userID string, ts time.Time, n int) database.SessionInput {
	hour := ts.Hour()

	activity := "other"
	for _, a := range activityHours {
		if containsInt(a.hours, hour) {
			activity = a.activity
			break
		}
	}
	meal := mealHours[len(mealHours)-1]
	for _, m := range mealHours {
		if containsInt(m.hours, hour) {
			meal = m
			break
		}
	}

	var focus, clarity int
	switch activity {
	case "deep_work":
		focus, clarity = g.intn(4, 5), g.intn(3, 5)
	case "creative":
		focus, clarity = g.intn(3, 5), g.intn(4, 5)
	case "learning":
		focus, clarity = g.intn(3, 5), g.intn(3, 5)
	default:
		focus, clarity = g.intn(2, 4), g.intn(2, 4)
	}

	lifestyle := &database.LifestyleContext{
		SleepHours:           floatPtr(round1(g.uniform(7, 9))),
		SleepQuality:         intPtr(g.intn(3, 5)),
		LastMealType:         g.pick(meal.types),
		HoursSinceMeal:       floatPtr(round1(g.uniform(0.5, 4))),
		MealSize:             g.pick(database.MealSizes),
		MealQuality:          intPtr(g.intn(3, 5)),
		HydrationLevel:       intPtr(g.intn(3, 5)),
		CaffeineIntake:       intPtr(g.intn(0, 300)),
		ExerciseType:         g.pick(exercises),
		ExerciseDurationMins: intPtr(g.intn(0, 60)),
		MoodScore:            intPtr(g.intn(3, 5)),
		FocusScore:           intPtr(focus),
		MentalClarity:        intPtr(clarity),
		ActivityType:         activity,
		TimeOfDay:            ts.Format("15:04"),
	}

	journal := &database.JournalEntry{
		Mood:              g.pick(moods[activity]),
		EnergyLevel:       intPtr(g.intn(3, 5)),
		StressLevel:       intPtr(g.intn(1, 3)),
		ProductivityScore: intPtr(focus),
		Notes:             fmt.Sprintf("Sample journal entry for %s session", activity),
		Tags:              fmt.Sprintf("%s,focus,%s", activity, meal.meal),
	}

	calories := g.intn(meal.kcal[0], meal.kcal[1])
	kcal := float64(calories)
	diet := &database.DietLog{
		MealType:  meal.meal,
		FoodItems: []string{meal.meal + " item 1", meal.meal + " item 2"},
		Calories:  intPtr(calories),
		Protein:   floatPtr(round1(kcal * g.uniform(0.2, 0.3) / 4)),
		Carbs:     floatPtr(round1(kcal * g.uniform(0.4, 0.5) / 4)),
		Fats:      floatPtr(round1(kcal * g.uniform(0.2, 0.3) / 9)),
		Fiber:     floatPtr(round1(g.uniform(2, 15))),
		Sugar:     floatPtr(round1(g.uniform(5, 25))),
		Notes:     fmt.Sprintf("Sample %s notes", meal.meal),
	}

	return database.SessionInput{
		UserID:    userID,
		Timestamp: ts,
		Notes:     fmt.Sprintf("Sample session %d", n),
		EEG:       g.EEG(ts, g.opts.DurationSeconds, g.opts.SamplingRate),
		Context:   lifestyle,
		Journal:   journal,
		Diet:      diet,
	}
}

// EEG synthesises a two-channel recording: 10 Hz alpha and 20 Hz beta on
// channel 1, 5 Hz theta and 2 Hz delta on channel 2, with the same gaussian
// noise (sd 0.1) added to both.
func (g *Generator) EEG(start time.Time, seconds int, fs float64) []analysis.Sample {
	n := int(float64(seconds) * fs)
	samples := make([]analysis.Sample, n)
	t0 := float64(start.Unix())

	for i := range samples {
		t := float64(i) / fs
		noise := 0.1 * g.rng.NormFloat64()
		samples[i] = analysis.Sample{
			Timestamp: t0 + t,
			Channel1:  0.5*math.Sin(2*math.Pi*10*t) + 0.3*math.Sin(2*math.Pi*20*t) + noise,
			Channel2:  0.4*math.Sin(2*math.Pi*5*t) + 0.2*math.Sin(2*math.Pi*2*t) + noise,
		}
	}
	return samples
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
