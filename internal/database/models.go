package database

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError describes a rejected field. It matches ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Enumerations accepted by the lifestyle and diet tables.
var (
	MealTypes     = []string{"balanced", "high-protein", "high-carb", "light", "skip"}
	MealSizes     = []string{"small", "medium", "large"}
	ActivityTypes = []string{"deep_work", "creative", "learning", "rest", "other"}
	DietMealTypes = []string{"breakfast", "lunch", "dinner", "snack"}
)

// User is a person whose sessions are tracked.
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Session is one recorded unit of EEG and self-report data.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Notes     string    `json:"notes,omitempty" db:"notes"`
}

// LifestyleContext holds the self-reported state around a session. Nil
// fields were not reported.
type LifestyleContext struct {
	SleepHours           *float64 `json:"sleep_hours,omitempty" db:"sleep_hours"`
	SleepQuality         *int     `json:"sleep_quality,omitempty" db:"sleep_quality"`
	LastMealType         string   `json:"last_meal_type,omitempty" db:"last_meal_type"`
	HoursSinceMeal       *float64 `json:"hours_since_meal,omitempty" db:"hours_since_meal"`
	MealSize             string   `json:"meal_size,omitempty" db:"meal_size"`
	MealQuality          *int     `json:"meal_quality,omitempty" db:"meal_quality"`
	HydrationLevel       *int     `json:"hydration_level,omitempty" db:"hydration_level"`
	CaffeineIntake       *int     `json:"caffeine_intake,omitempty" db:"caffeine_intake"`
	ExerciseType         string   `json:"exercise_type,omitempty" db:"exercise_type"`
	ExerciseDurationMins *int     `json:"exercise_duration_mins,omitempty" db:"exercise_duration_mins"`
	MoodScore            *int     `json:"mood_score,omitempty" db:"mood_score"`
	FocusScore           *int     `json:"focus_score,omitempty" db:"focus_score"`
	MentalClarity        *int     `json:"mental_clarity,omitempty" db:"mental_clarity"`
	ActivityType         string   `json:"activity_type,omitempty" db:"activity_type"`
	TimeOfDay            string   `json:"time_of_day,omitempty" db:"time_of_day"`
}

type JournalEntry struct {
	ID                string    `json:"id,omitempty" db:"id"`
	Timestamp         time.Time `json:"timestamp" db:"timestamp"`
	Mood              string    `json:"mood,omitempty" db:"mood"`
	EnergyLevel       *int      `json:"energy_level,omitempty" db:"energy_level"`
	StressLevel       *int      `json:"stress_level,omitempty" db:"stress_level"`
	ProductivityScore *int      `json:"productivity_score,omitempty" db:"productivity_score"`
	Notes             string    `json:"notes,omitempty" db:"notes"`
	Tags              string    `json:"tags,omitempty" db:"tags"`
}

type DietLog struct {
	ID        string    `json:"id,omitempty" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	MealType  string    `json:"meal_type,omitempty" db:"meal_type"`
	FoodItems []string  `json:"food_items" db:"food_items"`
	Calories  *int      `json:"calories,omitempty" db:"calories"`
	Protein   *float64  `json:"protein,omitempty" db:"protein"`
	Carbs     *float64  `json:"carbs,omitempty" db:"carbs"`
	Fats      *float64  `json:"fats,omitempty" db:"fats"`
	Fiber     *float64  `json:"fiber,omitempty" db:"fiber"`
	Sugar     *float64  `json:"sugar,omitempty" db:"sugar"`
	Notes     string    `json:"notes,omitempty" db:"notes"`
}

// SessionInput is everything recorded for a new session. Only UserID is required.
type SessionInput struct {
	UserID    string            `json:"user_id"`
	Timestamp time.Time         `json:"timestamp"`
	Notes     string            `json:"notes,omitempty"`
	EEG       []analysis.Sample `json:"eeg,omitempty"`
	Context   *LifestyleContext `json:"context,omitempty"`
	Journal   *JournalEntry     `json:"journal,omitempty"`
	Diet      *DietLog          `json:"diet,omitempty"`
}

// SessionData is a session with all of its child records.
type SessionData struct {
	Session Session           `json:"session"`
	EEG     []analysis.Sample `json:"eeg"`
	Context *LifestyleContext `json:"context,omitempty"`
	Journal *JournalEntry     `json:"journal,omitempty"`
	Diet    *DietLog          `json:"diet,omitempty"`
}

// SessionOverview is one row of the recent sessions listing.
type SessionOverview struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ActivityType  string    `json:"activity_type,omitempty"`
	TimeOfDay     string    `json:"time_of_day,omitempty"`
	FocusScore    *int      `json:"focus_score,omitempty"`
	MentalClarity *int      `json:"mental_clarity,omitempty"`
	MoodScore     *int      `json:"mood_score,omitempty"`
	SampleCount   int       `json:"sample_count"`
}

// SessionRecord is a session joined with its context, journal and diet rows,
// flattened for statistics. Missing numeric values are NaN.
type SessionRecord struct {
	SessionID      string
	Timestamp      time.Time
	SleepHours     float64
	SleepQuality   float64
	LastMealType   string
	HoursSinceMeal float64
	ExerciseType   string
	Mood           float64
	Focus          float64
	Clarity        float64
	ActivityType   string
	TimeOfDay      string
	Energy         float64
	Stress         float64
	Productivity   float64
	DietMealType   string
}

// RecordFilter bounds ListSessionRecords by session time. Zero values are open.
type RecordFilter struct {
	From time.Time
	To   time.Time
}

type DateRange struct {
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// NewUser creates a new user with generated ID
func NewUser(name string) *User {
	return &User{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks ranges and enumerations before anything is written.
func (in *SessionInput) Validate() error {
	if in.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "is required"}
	}
	if err := analysis.ValidateSamples(in.EEG); err != nil {
		return &ValidationError{Field: "eeg", Message: err.Error()}
	}
	if c := in.Context; c != nil {
		checks := []error{
			checkScore("sleep_quality", c.SleepQuality),
			checkScore("meal_quality", c.MealQuality),
			checkScore("hydration_level", c.HydrationLevel),
			checkScore("mood_score", c.MoodScore),
			checkScore("focus_score", c.FocusScore),
			checkScore("mental_clarity", c.MentalClarity),
			checkEnum("last_meal_type", c.LastMealType, MealTypes),
			checkEnum("meal_size", c.MealSize, MealSizes),
			checkEnum("activity_type", c.ActivityType, ActivityTypes),
			checkNonNegative("sleep_hours", c.SleepHours),
			checkNonNegative("hours_since_meal", c.HoursSinceMeal),
		}
		if err := errors.Join(checks...); err != nil {
			return err
		}
	}
	if j := in.Journal; j != nil {
		if err := errors.Join(
			checkScore("energy_level", j.EnergyLevel),
			checkScore("stress_level", j.StressLevel),
			checkScore("productivity_score", j.ProductivityScore),
		); err != nil {
			return err
		}
	}
	if d := in.Diet; d != nil {
		if err := checkEnum("meal_type", d.MealType, DietMealTypes); err != nil {
			return err
		}
	}
	return nil
}

func checkScore(field string, v *int) error {
	if v != nil && (*v < 1 || *v > 5) {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be between 1 and 5, got %d", *v)}
	}
	return nil
}

func checkEnum(field, v string, allowed []string) error {
	if v == "" {
		return nil
	}
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return &ValidationError{Field: field, Message: fmt.Sprintf("must be one of %v, got %q", allowed, v)}
}

func checkNonNegative(field string, v *float64) error {
	if v != nil && (*v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return &ValidationError{Field: field, Message: "must be a finite non-negative number"}
	}
	return nil
}
